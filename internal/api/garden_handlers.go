package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scottdixon-github/App-Garden/internal/domain"
)

func (h *Handler) gardenRoutes(r chi.Router) {
	r.Route("/v1/plots", func(r chi.Router) {
		r.Get("/", h.listPlots)
		r.Post("/", h.addPlot)
		r.Put("/{id}", h.updatePlot)
		r.Delete("/{id}", h.deletePlot)
	})
	r.Route("/v1/plants", func(r chi.Router) {
		r.Get("/", h.listPlants)
		r.Post("/", h.addPlant)
		r.Put("/{id}", h.updatePlant)
		r.Delete("/{id}", h.deletePlant)
		r.Put("/{id}/plot", h.assignPlant)
		r.Delete("/{id}/plot", h.unassignPlant)
	})
	r.Route("/v1/tasks", func(r chi.Router) {
		r.Get("/", h.listTasks)
		r.Post("/", h.addTask)
		r.Put("/{id}", h.updateTask)
		r.Delete("/{id}", h.deleteTask)
		r.Post("/{id}/toggle", h.toggleTask)
	})
	r.Route("/v1/recipes", func(r chi.Router) {
		r.Get("/", h.listRecipes)
		r.Post("/{id}/favorite", h.toggleRecipeFavorite)
	})
}

// PlotRequest is the payload for creating or updating a plot.
type PlotRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Size string `json:"size" validate:"max=50"`
}

// PlantRequest is the payload for creating or updating a plant. PlotID is only
// honoured on create.
type PlantRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Type        string `json:"type" validate:"max=50"`
	Sunlight    string `json:"sunlight" validate:"max=50"`
	Water       string `json:"water" validate:"max=50"`
	Difficulty  string `json:"difficulty" validate:"max=50"`
	GrowthTime  string `json:"growthTime" validate:"max=50"`
	Description string `json:"description" validate:"max=2000"`
	Image       string `json:"image" validate:"omitempty,url"`
	PlotID      string `json:"plotId"`
}

func (p PlantRequest) plant() domain.Plant {
	return domain.Plant{
		Name:        p.Name,
		Type:        p.Type,
		Sunlight:    p.Sunlight,
		Water:       p.Water,
		Difficulty:  p.Difficulty,
		GrowthTime:  p.GrowthTime,
		Description: p.Description,
		Image:       p.Image,
		PlotID:      p.PlotID,
	}
}

// AssignPlantRequest moves a plant into a plot.
type AssignPlantRequest struct {
	PlotID string `json:"plot_id" validate:"required"`
}

// TaskRequest is the payload for creating or updating a task.
type TaskRequest struct {
	Task      string `json:"task" validate:"required,max=200"`
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Completed bool   `json:"completed"`
	PlotID    string `json:"plotId"`
	PlantID   string `json:"plantId"`
}

func (t TaskRequest) task(id string) domain.Task {
	return domain.Task{ID: id, Task: t.Task, Date: t.Date, Completed: t.Completed, PlotID: t.PlotID, PlantID: t.PlantID}
}

func (h *Handler) listPlots(w http.ResponseWriter, r *http.Request) {
	plots, err := h.garden.ListPlots(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(plots))
}

func (h *Handler) addPlot(w http.ResponseWriter, r *http.Request) {
	var req PlotRequest
	if !bind(w, r, &req) {
		return
	}
	plot, err := h.garden.AddPlot(r.Context(), domain.Plot{Name: req.Name, Size: req.Size})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plot)
}

func (h *Handler) updatePlot(w http.ResponseWriter, r *http.Request) {
	var req PlotRequest
	if !bind(w, r, &req) {
		return
	}
	plot, err := h.garden.UpdatePlot(r.Context(), domain.Plot{ID: chi.URLParam(r, "id"), Name: req.Name, Size: req.Size})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plot)
}

func (h *Handler) deletePlot(w http.ResponseWriter, r *http.Request) {
	if err := h.garden.DeletePlot(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPlants(w http.ResponseWriter, r *http.Request) {
	plants, err := h.garden.ListPlants(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(plants))
}

func (h *Handler) addPlant(w http.ResponseWriter, r *http.Request) {
	var req PlantRequest
	if !bind(w, r, &req) {
		return
	}
	plant, err := h.garden.AddPlant(r.Context(), req.plant())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plant)
}

func (h *Handler) updatePlant(w http.ResponseWriter, r *http.Request) {
	var req PlantRequest
	if !bind(w, r, &req) {
		return
	}
	update := req.plant()
	update.ID = chi.URLParam(r, "id")
	plant, err := h.garden.UpdatePlant(r.Context(), update)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plant)
}

func (h *Handler) deletePlant(w http.ResponseWriter, r *http.Request) {
	if err := h.garden.DeletePlant(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignPlant(w http.ResponseWriter, r *http.Request) {
	var req AssignPlantRequest
	if !bind(w, r, &req) {
		return
	}
	plant, err := h.garden.AssignPlant(r.Context(), chi.URLParam(r, "id"), req.PlotID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plant)
}

func (h *Handler) unassignPlant(w http.ResponseWriter, r *http.Request) {
	plant, err := h.garden.UnassignPlant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plant)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.garden.ListTasks(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tasks))
}

func (h *Handler) addTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if !bind(w, r, &req) {
		return
	}
	task, err := h.garden.AddTask(r.Context(), req.task(""))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if !bind(w, r, &req) {
		return
	}
	task, err := h.garden.UpdateTask(r.Context(), req.task(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.garden.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggleTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.garden.ToggleTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) listRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.garden.ListRecipes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(recipes))
}

func (h *Handler) toggleRecipeFavorite(w http.ResponseWriter, r *http.Request) {
	recipe, err := h.garden.ToggleRecipeFavorite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
