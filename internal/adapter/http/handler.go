package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/uastudio/internal/app"
	"github.com/neomorfeo/uastudio/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// SessionSummary is the API representation of an archived session without its members.
type SessionSummary struct {
	ID        string `json:"id" doc:"Session identifier"`
	CreatedAt string `json:"created_at" doc:"Archive timestamp (ISO 8601)"`
	Count     int    `json:"count" doc:"Number of agent strings"`
}

// SessionResponse is a session with its members in generation order.
type SessionResponse struct {
	SessionSummary
	Agents []string `json:"agents" doc:"Agent strings"`
}

func toSessionSummary(s domain.Session) SessionSummary {
	return SessionSummary{
		ID:        s.ID,
		CreatedAt: s.CreatedAt.UTC().Format(timeFormat),
		Count:     s.Count,
	}
}

func toSessionResponse(s domain.Session) SessionResponse {
	agents := s.Agents
	if agents == nil {
		agents = []string{}
	}
	return SessionResponse{SessionSummary: toSessionSummary(s), Agents: agents}
}

// --- Generate ---

// defaultCount applies when a generate request carries no count. An explicit
// zero or negative count is clamped by the engine instead.
const defaultCount = 10

type GenerateInput struct {
	Body struct {
		Count       *int   `json:"count,omitempty" doc:"Number of agent strings, clamped to [1, 5000]; 10 when omitted"`
		Device      string `json:"device,omitempty" doc:"Catalogue device id or a custom model string"`
		Variant     string `json:"variant,omitempty" enum:"fb,chrome,safari,mixed" doc:"Agent flavour"`
		Locale      string `json:"locale,omitempty" doc:"Locale tag or auto"`
		IncludeTime bool   `json:"include_time,omitempty" doc:"Append a timestamp marker"`
		TokenMode   string `json:"token_mode,omitempty" enum:"none,timestamp,uuid" doc:"Uniqueness token"`
		AppVersion  string `json:"app_version,omitempty" maxLength:"64" doc:"Fixed embedded-app version"`
		Preset      string `json:"preset,omitempty" enum:"fb_latest,fb_europe,fb_india,chrome_new,safari_new" doc:"Canned option set applied over the fields above"`
	}
}

type BatchResponse struct {
	Agents    []string        `json:"agents" doc:"Generated agent strings in order"`
	Requested int             `json:"requested" doc:"Clamped requested count"`
	Produced  int             `json:"produced" doc:"Strings actually produced"`
	Attempts  int             `json:"attempts" doc:"Candidates tried"`
	Exhausted bool            `json:"exhausted" doc:"Retry budget ran out before the target"`
	Archived  *SessionSummary `json:"archived,omitempty" doc:"Session created from the previous batch"`
	Warning   string          `json:"warning,omitempty" doc:"Non-fatal problem, such as a failed save"`
}

type GenerateOutput struct {
	Body BatchResponse
}

// --- Active batch ---

type SearchInput struct {
	Query string `query:"q" required:"false" doc:"Case-insensitive substring filter"`
}

type AgentsOutput struct {
	Body struct {
		Agents []string `json:"agents"`
		Count  int      `json:"count"`
	}
}

type ClearOutput struct {
	Body struct {
		Released int `json:"released" doc:"Strings removed from the active batch and the registry"`
	}
}

type ArchiveOutput struct {
	Body struct {
		Archived *SessionSummary `json:"archived,omitempty"`
		Warning  string          `json:"warning,omitempty"`
	}
}

// --- Export ---

type ExportListInput struct {
	Body struct {
		Agents []string `json:"agents" doc:"Agent strings to export"`
	}
}

type CSVOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func csvOutput(name string, body []byte) *CSVOutput {
	return &CSVOutput{
		ContentType:        "text/csv; charset=utf-8",
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", name),
		Body:               body,
	}
}

// --- Sessions ---

type SessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type ListSessionsOutput struct {
	Body []SessionSummary
}

type SessionOutput struct {
	Body SessionResponse
}

type DeleteSessionOutput struct {
	Body struct {
		Deleted  SessionSummary `json:"deleted"`
		Registry int            `json:"registry" doc:"Registry size after release"`
		Warning  string         `json:"warning,omitempty"`
	}
}

// --- Misc ---

type ResetOutput struct {
	Body struct {
		Warning string `json:"warning,omitempty"`
	}
}

type DeviceResponse struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Model    string `json:"model"`
	Platform string `json:"platform"`
}

type DevicesOutput struct {
	Body []DeviceResponse
}

type StatsOutput struct {
	Body struct {
		Sessions int    `json:"sessions"`
		Registry int    `json:"registry"`
		Active   int    `json:"active"`
		State    string `json:"state"`
	}
}

// Register adds all generator API routes to the Huma API.
func Register(api huma.API, engine *app.GenerationEngine) {
	huma.Register(api, huma.Operation{
		OperationID:   "generate-batch",
		Method:        http.MethodPost,
		Path:          "/api/v1/batches",
		Summary:       "Generate a batch of unique agent strings",
		Description:   "Archives the pending batch first, then replaces it with the new one.",
		Tags:          []string{"Batches"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *GenerateInput) (*GenerateOutput, error) {
		in := input.Body
		opts := domain.Preset(in.Preset).Apply(domain.Options{
			Variant:     domain.Variant(in.Variant),
			Locale:      in.Locale,
			IncludeTime: in.IncludeTime,
			TokenMode:   domain.TokenMode(in.TokenMode),
			AppVersion:  in.AppVersion,
		})

		count := defaultCount
		if in.Count != nil {
			count = *in.Count
		}

		batch, err := engine.GenerateBatch(ctx, count, resolveProfile(in.Device), opts)
		warning, err := splitStorageError(err)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := BatchResponse{
			Agents:    batch.Agents,
			Requested: batch.Requested,
			Produced:  batch.Produced(),
			Attempts:  batch.Attempts,
			Exhausted: batch.Exhausted,
			Warning:   warning,
		}
		if batch.Archived != nil {
			s := toSessionSummary(*batch.Archived)
			resp.Archived = &s
		}
		if batch.Exhausted && resp.Warning == "" {
			resp.Warning = fmt.Sprintf("only %d of %d unique strings found; widen the options or enable a token", batch.Produced(), batch.Requested)
		}
		return &GenerateOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "search-batch",
		Method:      http.MethodGet,
		Path:        "/api/v1/batch",
		Summary:     "List or search the active batch",
		Tags:        []string{"Batches"},
	}, func(ctx context.Context, input *SearchInput) (*AgentsOutput, error) {
		out := &AgentsOutput{}
		out.Body.Agents = engine.Search(ctx, input.Query)
		if out.Body.Agents == nil {
			out.Body.Agents = []string{}
		}
		out.Body.Count = len(out.Body.Agents)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-batch",
		Method:      http.MethodDelete,
		Path:        "/api/v1/batch",
		Summary:     "Discard the active batch without archiving it",
		Tags:        []string{"Batches"},
	}, func(ctx context.Context, _ *struct{}) (*ClearOutput, error) {
		n, err := engine.ClearActive(ctx)
		if _, err = splitStorageError(err); err != nil {
			return nil, toHumaError(err)
		}
		out := &ClearOutput{}
		out.Body.Released = n
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "archive-batch",
		Method:      http.MethodPost,
		Path:        "/api/v1/batch/archive",
		Summary:     "Archive the active batch as a session",
		Tags:        []string{"Batches"},
	}, func(ctx context.Context, _ *struct{}) (*ArchiveOutput, error) {
		s, ok, err := engine.ArchiveIfPending(ctx)
		warning, err := splitStorageError(err)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &ArchiveOutput{}
		out.Body.Warning = warning
		if ok {
			summary := toSessionSummary(s)
			out.Body.Archived = &summary
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-list",
		Method:      http.MethodPost,
		Path:        "/api/v1/exports",
		Summary:     "Render a list of agent strings as CSV",
		Tags:        []string{"Exports"},
	}, func(_ context.Context, input *ExportListInput) (*CSVOutput, error) {
		return csvOutput("ua_export.csv", app.EncodeCSV(input.Body.Agents)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions",
		Summary:     "List archived sessions, oldest first",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, _ *struct{}) (*ListSessionsOutput, error) {
		sessions := engine.Sessions(ctx)
		resp := make([]SessionSummary, len(sessions))
		for i, s := range sessions {
			resp[i] = toSessionSummary(s)
		}
		return &ListSessionsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "latest-session",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/latest",
		Summary:     "Get the most recently archived session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
		s, err := engine.RestoreLast(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SessionOutput{Body: toSessionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get a session by ID",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionIDInput) (*SessionOutput, error) {
		s, err := engine.ViewSession(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SessionOutput{Body: toSessionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-session",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/export",
		Summary:     "Download a session as CSV",
		Tags:        []string{"Sessions", "Exports"},
	}, func(ctx context.Context, input *SessionIDInput) (*CSVOutput, error) {
		body, err := engine.ExportSession(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return csvOutput("ua_session_"+input.ID+".csv", body), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-session",
		Method:      http.MethodDelete,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Delete a session and release its strings",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionIDInput) (*DeleteSessionOutput, error) {
		s, err := engine.DeleteSession(ctx, input.ID)
		warning, err := splitStorageError(err)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &DeleteSessionOutput{}
		out.Body.Deleted = toSessionSummary(s)
		out.Body.Registry = engine.Stats(ctx).Registry
		out.Body.Warning = warning
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset",
		Method:      http.MethodPost,
		Path:        "/api/v1/reset",
		Summary:     "Forget every string and session",
		Tags:        []string{"Maintenance"},
	}, func(ctx context.Context, _ *struct{}) (*ResetOutput, error) {
		warning, err := splitStorageError(engine.ResetAll(ctx))
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &ResetOutput{}
		out.Body.Warning = warning
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/v1/devices",
		Summary:     "List the built-in device catalogue",
		Tags:        []string{"Maintenance"},
	}, func(_ context.Context, _ *struct{}) (*DevicesOutput, error) {
		resp := make([]DeviceResponse, len(domain.Devices))
		for i, d := range domain.Devices {
			resp[i] = DeviceResponse{ID: d.ID, Label: d.Label, Model: d.Model, Platform: string(d.Platform())}
		}
		return &DevicesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Report registry, history and batch sizes",
		Tags:        []string{"Maintenance"},
	}, func(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
		st := engine.Stats(ctx)
		out := &StatsOutput{}
		out.Body.Sessions = st.Sessions
		out.Body.Registry = st.Registry
		out.Body.Active = st.Active
		out.Body.State = string(engine.State())
		return out, nil
	})
}

// resolveProfile maps a catalogue id to its model; anything else is taken
// as a custom model string. Empty selects the first catalogue device.
func resolveProfile(device string) domain.Profile {
	if device == "" {
		return domain.NewProfile(domain.Devices[0].Model)
	}
	if d, ok := domain.LookupDevice(device); ok {
		return domain.NewProfile(d.Model)
	}
	return domain.NewProfile(device)
}

// splitStorageError turns a save failure into a warning: the operation
// itself succeeded in memory.
func splitStorageError(err error) (string, error) {
	var se *domain.StorageError
	if errors.As(err, &se) {
		return "state could not be saved: " + se.Error(), nil
	}
	return "", err
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrSessionNotFound) {
		return huma.Error404NotFound("session not found")
	}

	if errors.Is(err, domain.ErrEngineBusy) {
		return huma.Error409Conflict(err.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error409Conflict(trErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
