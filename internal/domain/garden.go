package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPlotNotFound is returned when a garden plot cannot be located.
	ErrPlotNotFound = errors.New("plot not found")
	// ErrPlantNotFound is returned when a plant cannot be located.
	ErrPlantNotFound = errors.New("plant not found")
	// ErrTaskNotFound is returned when a task cannot be located.
	ErrTaskNotFound = errors.New("task not found")
	// ErrRecipeNotFound is returned when a recipe cannot be located.
	ErrRecipeNotFound = errors.New("recipe not found")
)

// Plot is a named garden bed.
type Plot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      string    `json:"size"`
	Plants    int       `json:"plants"`
	CreatedAt time.Time `json:"createdAt"`
}

// Plant is a catalogue entry that may be placed in a plot.
type Plant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Sunlight    string `json:"sunlight"`
	Water       string `json:"water"`
	Difficulty  string `json:"difficulty"`
	GrowthTime  string `json:"growthTime"`
	Description string `json:"description"`
	Image       string `json:"image"`
	InGarden    bool   `json:"inGarden"`
	PlotID      string `json:"plotId,omitempty"`
}

// Task is a dated garden chore, optionally tied to a plot or plant.
type Task struct {
	ID        string `json:"id"`
	Task      string `json:"task"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	PlotID    string `json:"plotId,omitempty"`
	PlantID   string `json:"plantId,omitempty"`
}

// NutritionInfo lists per-serving nutrition values.
type NutritionInfo struct {
	Calories int    `json:"calories"`
	Protein  string `json:"protein"`
	Carbs    string `json:"carbs"`
	Fat      string `json:"fat"`
	Fiber    string `json:"fiber"`
}

// Recipe uses produce from the garden.
type Recipe struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Category          string        `json:"category"`
	PrepTime          string        `json:"prepTime"`
	Difficulty        string        `json:"difficulty"`
	Ingredients       []string      `json:"ingredients"`
	GardenIngredients []string      `json:"gardenIngredients"`
	Instructions      string        `json:"instructions"`
	IsFavorite        bool          `json:"isFavorite"`
	NutritionInfo     NutritionInfo `json:"nutritionInfo"`
}

// ListStore persists a whole list of values under one key.
// Load reports found=false when nothing has been stored yet.
type ListStore[T any] interface {
	Load(ctx context.Context) (items []T, found bool, err error)
	Save(ctx context.Context, items []T) error
}

// GardenStores groups the list stores backing the garden.
type GardenStores struct {
	Plots   ListStore[Plot]
	Plants  ListStore[Plant]
	Tasks   ListStore[Task]
	Recipes ListStore[Recipe]
}

// GardenOption configures the GardenService.
type GardenOption func(*GardenService)

// WithGardenClock overrides the clock used for plot creation times.
func WithGardenClock(clock func() time.Time) GardenOption {
	return func(g *GardenService) {
		g.clock = clock
	}
}

// WithSampleData seeds sample content into lists that have never been stored.
func WithSampleData(enabled bool) GardenOption {
	return func(g *GardenService) {
		g.seed = enabled
	}
}

// GardenService manages plots, plants, tasks and recipes and keeps their cross references consistent.
type GardenService struct {
	stores GardenStores
	clock  func() time.Time
	seed   bool

	mu sync.Mutex
}

// NewGardenService constructs a GardenService.
func NewGardenService(stores GardenStores, opts ...GardenOption) *GardenService {
	g := &GardenService{stores: stores, clock: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func loadList[T any](ctx context.Context, store ListStore[T], seed bool, sample func() []T) ([]T, error) {
	items, found, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if found || !seed {
		return items, nil
	}
	items = sample()
	if err := store.Save(ctx, items); err != nil {
		return nil, fmt.Errorf("seed list: %w", err)
	}
	return items, nil
}

func (g *GardenService) plots(ctx context.Context) ([]Plot, error) {
	return loadList(ctx, g.stores.Plots, g.seed, SamplePlots)
}

func (g *GardenService) plants(ctx context.Context) ([]Plant, error) {
	return loadList(ctx, g.stores.Plants, g.seed, SamplePlants)
}

func (g *GardenService) tasks(ctx context.Context) ([]Task, error) {
	return loadList(ctx, g.stores.Tasks, g.seed, SampleTasks)
}

func (g *GardenService) recipes(ctx context.Context) ([]Recipe, error) {
	return loadList(ctx, g.stores.Recipes, g.seed, SampleRecipes)
}

// ListPlots returns every plot.
func (g *GardenService) ListPlots(ctx context.Context) ([]Plot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.plots(ctx)
}

// AddPlot creates a plot with a fresh ID and creation time.
func (g *GardenService) AddPlot(ctx context.Context, plot Plot) (*Plot, error) {
	if strings.TrimSpace(plot.Name) == "" {
		return nil, fmt.Errorf("%w: plot name is required", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	plots, err := g.plots(ctx)
	if err != nil {
		return nil, err
	}
	plot.ID = uuid.NewString()
	plot.CreatedAt = g.clock().UTC()
	if plot.Plants < 0 {
		plot.Plants = 0
	}
	if err := g.stores.Plots.Save(ctx, append(plots, plot)); err != nil {
		return nil, err
	}
	return &plot, nil
}

// UpdatePlot replaces the name and size of a plot.
func (g *GardenService) UpdatePlot(ctx context.Context, plot Plot) (*Plot, error) {
	if strings.TrimSpace(plot.Name) == "" {
		return nil, fmt.Errorf("%w: plot name is required", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	plots, err := g.plots(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(plots, func(p Plot) bool { return p.ID == plot.ID })
	if idx < 0 {
		return nil, ErrPlotNotFound
	}
	plots[idx].Name = plot.Name
	plots[idx].Size = plot.Size
	if err := g.stores.Plots.Save(ctx, plots); err != nil {
		return nil, err
	}
	updated := plots[idx]
	return &updated, nil
}

// DeletePlot removes a plot, returns its plants to the catalogue and drops its tasks.
func (g *GardenService) DeletePlot(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	plots, err := g.plots(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(plots, func(p Plot) bool { return p.ID == id })
	if idx < 0 {
		return ErrPlotNotFound
	}

	plants, err := g.plants(ctx)
	if err != nil {
		return err
	}
	tasks, err := g.tasks(ctx)
	if err != nil {
		return err
	}

	for i := range plants {
		if plants[i].PlotID == id {
			plants[i].InGarden = false
			plants[i].PlotID = ""
		}
	}
	tasks = filter(tasks, func(t Task) bool { return t.PlotID != id })

	if err := g.stores.Plots.Save(ctx, append(plots[:idx:idx], plots[idx+1:]...)); err != nil {
		return err
	}
	if err := g.stores.Plants.Save(ctx, plants); err != nil {
		return err
	}
	return g.stores.Tasks.Save(ctx, tasks)
}

// ListPlants returns the plant catalogue.
func (g *GardenService) ListPlants(ctx context.Context) ([]Plant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.plants(ctx)
}

// AddPlant adds a plant to the catalogue.
func (g *GardenService) AddPlant(ctx context.Context, plant Plant) (*Plant, error) {
	if strings.TrimSpace(plant.Name) == "" {
		return nil, fmt.Errorf("%w: plant name is required", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	plants, err := g.plants(ctx)
	if err != nil {
		return nil, err
	}
	plant.ID = uuid.NewString()
	plant.InGarden = plant.PlotID != ""
	updated := append(append([]Plant(nil), plants...), plant)
	if err := g.savePlacement(ctx, plants, updated, "", plant.PlotID); err != nil {
		return nil, err
	}
	return &plant, nil
}

// UpdatePlant replaces the descriptive fields of a plant. Placement is changed
// through AssignPlant and UnassignPlant.
func (g *GardenService) UpdatePlant(ctx context.Context, plant Plant) (*Plant, error) {
	if strings.TrimSpace(plant.Name) == "" {
		return nil, fmt.Errorf("%w: plant name is required", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	plants, err := g.plants(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(plants, func(p Plant) bool { return p.ID == plant.ID })
	if idx < 0 {
		return nil, ErrPlantNotFound
	}
	plant.InGarden = plants[idx].InGarden
	plant.PlotID = plants[idx].PlotID
	plants[idx] = plant
	if err := g.stores.Plants.Save(ctx, plants); err != nil {
		return nil, err
	}
	return &plant, nil
}

// DeletePlant removes a plant, its tasks and its slot in the plot it occupied.
func (g *GardenService) DeletePlant(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	plants, err := g.plants(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(plants, func(p Plant) bool { return p.ID == id })
	if idx < 0 {
		return ErrPlantNotFound
	}
	plant := plants[idx]

	tasks, err := g.tasks(ctx)
	if err != nil {
		return err
	}

	remaining := append(plants[:idx:idx], plants[idx+1:]...)
	if err := g.savePlacement(ctx, plants, remaining, plant.PlotID, ""); err != nil {
		return err
	}
	return g.stores.Tasks.Save(ctx, filter(tasks, func(t Task) bool { return t.PlantID != id }))
}

// AssignPlant places a plant in a plot, moving it out of any previous plot.
func (g *GardenService) AssignPlant(ctx context.Context, plantID, plotID string) (*Plant, error) {
	if strings.TrimSpace(plotID) == "" {
		return nil, fmt.Errorf("%w: plot_id is required", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	plants, err := g.plants(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(plants, func(p Plant) bool { return p.ID == plantID })
	if idx < 0 {
		return nil, ErrPlantNotFound
	}
	if plants[idx].PlotID == plotID {
		assigned := plants[idx]
		return &assigned, nil
	}

	updated := append([]Plant(nil), plants...)
	updated[idx].InGarden = true
	updated[idx].PlotID = plotID
	if err := g.savePlacement(ctx, plants, updated, plants[idx].PlotID, plotID); err != nil {
		return nil, err
	}
	assigned := updated[idx]
	return &assigned, nil
}

// UnassignPlant returns a plant to the catalogue.
func (g *GardenService) UnassignPlant(ctx context.Context, plantID string) (*Plant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	plants, err := g.plants(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(plants, func(p Plant) bool { return p.ID == plantID })
	if idx < 0 {
		return nil, ErrPlantNotFound
	}

	updated := append([]Plant(nil), plants...)
	updated[idx].InGarden = false
	updated[idx].PlotID = ""
	if err := g.savePlacement(ctx, plants, updated, plants[idx].PlotID, ""); err != nil {
		return nil, err
	}
	unassigned := updated[idx]
	return &unassigned, nil
}

// savePlacement writes the plant list and then the plot counts for a plant
// leaving from and entering to (either may be empty). The target plot must exist;
// a missing source plot is ignored. When the counts cannot be written the previous
// plant list is put back, so counts and placements stay in step.
func (g *GardenService) savePlacement(ctx context.Context, previous, plants []Plant, from, to string) error {
	if from == to {
		return g.stores.Plants.Save(ctx, plants)
	}
	plots, err := g.plots(ctx)
	if err != nil {
		return err
	}
	if to != "" {
		idx := indexOf(plots, func(p Plot) bool { return p.ID == to })
		if idx < 0 {
			return ErrPlotNotFound
		}
		plots[idx].Plants++
	}
	if from != "" {
		if idx := indexOf(plots, func(p Plot) bool { return p.ID == from }); idx >= 0 {
			plots[idx].Plants = max(plots[idx].Plants-1, 0)
		}
	}

	if err := g.stores.Plants.Save(ctx, plants); err != nil {
		return err
	}
	if err := g.stores.Plots.Save(ctx, plots); err != nil {
		if restoreErr := g.stores.Plants.Save(ctx, previous); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("restore plants: %w", restoreErr))
		}
		return err
	}
	return nil
}

// ListTasks returns every task.
func (g *GardenService) ListTasks(ctx context.Context) ([]Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tasks(ctx)
}

// AddTask creates a task.
func (g *GardenService) AddTask(ctx context.Context, task Task) (*Task, error) {
	if strings.TrimSpace(task.Task) == "" {
		return nil, fmt.Errorf("%w: task description is required", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	tasks, err := g.tasks(ctx)
	if err != nil {
		return nil, err
	}
	task.ID = uuid.NewString()
	if err := g.stores.Tasks.Save(ctx, append(tasks, task)); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask replaces a task.
func (g *GardenService) UpdateTask(ctx context.Context, task Task) (*Task, error) {
	if strings.TrimSpace(task.Task) == "" {
		return nil, fmt.Errorf("%w: task description is required", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	tasks, err := g.tasks(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(tasks, func(t Task) bool { return t.ID == task.ID })
	if idx < 0 {
		return nil, ErrTaskNotFound
	}
	tasks[idx] = task
	if err := g.stores.Tasks.Save(ctx, tasks); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes a task.
func (g *GardenService) DeleteTask(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tasks, err := g.tasks(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(tasks, func(t Task) bool { return t.ID == id })
	if idx < 0 {
		return ErrTaskNotFound
	}
	return g.stores.Tasks.Save(ctx, append(tasks[:idx:idx], tasks[idx+1:]...))
}

// ToggleTask flips the completion flag of a task.
func (g *GardenService) ToggleTask(ctx context.Context, id string) (*Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tasks, err := g.tasks(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(tasks, func(t Task) bool { return t.ID == id })
	if idx < 0 {
		return nil, ErrTaskNotFound
	}
	tasks[idx].Completed = !tasks[idx].Completed
	if err := g.stores.Tasks.Save(ctx, tasks); err != nil {
		return nil, err
	}
	toggled := tasks[idx]
	return &toggled, nil
}

// ListRecipes returns every recipe.
func (g *GardenService) ListRecipes(ctx context.Context) ([]Recipe, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.recipes(ctx)
}

// ToggleRecipeFavorite flips the favourite flag of a recipe.
func (g *GardenService) ToggleRecipeFavorite(ctx context.Context, id string) (*Recipe, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	recipes, err := g.recipes(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(recipes, func(r Recipe) bool { return r.ID == id })
	if idx < 0 {
		return nil, ErrRecipeNotFound
	}
	recipes[idx].IsFavorite = !recipes[idx].IsFavorite
	if err := g.stores.Recipes.Save(ctx, recipes); err != nil {
		return nil, err
	}
	toggled := recipes[idx]
	return &toggled, nil
}

func indexOf[T any](items []T, match func(T) bool) int {
	for i, item := range items {
		if match(item) {
			return i
		}
	}
	return -1
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
