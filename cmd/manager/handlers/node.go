package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/soclab/mitigator/cmd/manager/repository"
	"github.com/soclab/mitigator/common/logger"
)

// NodeHandler manages stored attack nodes.
type NodeHandler struct {
	store *repository.StateStore
	log   *logger.Logger
}

// NewNodeHandler creates a node handler.
func NewNodeHandler(store *repository.StateStore, log *logger.Logger) *NodeHandler {
	return &NodeHandler{
		store: store,
		log:   log,
	}
}

// GetNode retrieves a node by id. The node is returned in its raw
// persisted form, with condition references as identifiers.
// GET /node?id=123
func (h *NodeHandler) GetNode(c echo.Context) error {
	id, err := queryID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	node, err := h.store.RetrieveNodeRecord(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if node == nil {
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, node)
}

// PostNode stores a node. Chain links are optional; a node without
// prv/nxt is detached until linked.
// POST /node
func (h *NodeHandler) PostNode(c echo.Context) error {
	var body repository.NodeRecord
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}

	h.log.Info("storing node", "node_id", body.Identifier, "technique", body.Technique)
	if err := h.store.StoreNodeRecord(c.Request().Context(), &body); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}
