package api

import (
	"log/slog"

	energyCommands "github.com/voltahq/volta/internal/energy/application/commands"
	energyQueries "github.com/voltahq/volta/internal/energy/application/queries"
	"github.com/voltahq/volta/internal/identity/application/auth"
	identityCommands "github.com/voltahq/volta/internal/identity/application/commands"
	scheduleCommands "github.com/voltahq/volta/internal/scheduling/application/commands"
	scheduleQueries "github.com/voltahq/volta/internal/scheduling/application/queries"
)

// Deps bundles the application handlers the HTTP layer dispatches to.
type Deps struct {
	Tokens *auth.TokenService

	Register            *identityCommands.RegisterUserHandler
	Login               *identityCommands.LoginHandler
	Refresh             *identityCommands.RefreshHandler
	UpdateSleepSchedule *identityCommands.UpdateSleepScheduleHandler

	CreateTask         *scheduleCommands.CreateTaskHandler
	UpdateTask         *scheduleCommands.UpdateTaskHandler
	DeleteTask         *scheduleCommands.DeleteTaskHandler
	RescheduleTask     *scheduleCommands.RescheduleTaskHandler
	AddScheduleItem    *scheduleCommands.AddScheduleItemHandler
	RemoveScheduleItem *scheduleCommands.RemoveScheduleItemHandler
	ListTasks          *scheduleQueries.ListTasksHandler
	GetTask            *scheduleQueries.GetTaskHandler
	ListSchedule       *scheduleQueries.ListScheduleHandler

	RecordSample *energyCommands.RecordSampleHandler
	DayForecast  *energyQueries.GetDayForecastHandler
	Patterns     *energyQueries.GetPatternsHandler
}

// Handler holds the request handlers for every API route.
type Handler struct {
	deps   Deps
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{deps: deps, logger: logger}
}
