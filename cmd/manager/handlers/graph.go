package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/soclab/mitigator/cmd/manager/repository"
	"github.com/soclab/mitigator/common/logger"
)

// GraphHandler manages registered attack graphs.
type GraphHandler struct {
	store *repository.StateStore
	log   *logger.Logger
}

// NewGraphHandler creates a graph handler.
func NewGraphHandler(store *repository.StateStore, log *logger.Logger) *GraphHandler {
	return &GraphHandler{
		store: store,
		log:   log,
	}
}

type graphBody struct {
	InitialNode int64 `json:"initial_node"`
}

// GetGraphs returns one graph when ?id= is given, all graphs
// otherwise.
// GET /graph
func (h *GraphHandler) GetGraphs(c echo.Context) error {
	if c.QueryParam("id") == "" {
		graphs, err := h.store.ListGraphs(c.Request().Context())
		if err != nil {
			return err
		}
		if graphs == nil {
			graphs = []repository.GraphRecord{}
		}
		return c.JSON(http.StatusOK, graphs)
	}

	id, err := queryID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	graph, err := h.store.RetrieveGraph(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if graph == nil {
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, graph)
}

// PostGraph registers an attack graph rooted at the given node.
// POST /graph
func (h *GraphHandler) PostGraph(c echo.Context) error {
	var body graphBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}

	node, err := h.store.RetrieveNodeRecord(c.Request().Context(), body.InitialNode)
	if err != nil {
		return err
	}
	if node == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "initial node does not exist"})
	}

	id, err := h.store.StoreGraph(c.Request().Context(), body.InitialNode)
	if err != nil {
		return err
	}
	h.log.Info("graph registered", "graph_id", id, "initial_node", body.InitialNode)
	return c.JSON(http.StatusOK, repository.GraphRecord{Identifier: id, InitialNode: body.InitialNode})
}
