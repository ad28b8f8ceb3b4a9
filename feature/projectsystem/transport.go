package projectsystem

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"crm-bridge/core/models"
	"crm-bridge/core/remote"
)

// Task fields that are top-level attributes rather than custom fields.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldImportance  = "importance"
)

var builtinFields = []string{FieldTitle, FieldDescription, FieldStatus, FieldImportance}

const pageSize = 1000

type customField struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

type task struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Status       string        `json:"status"`
	Importance   string        `json:"importance"`
	CreatedDate  time.Time     `json:"createdDate"`
	UpdatedDate  time.Time     `json:"updatedDate"`
	CustomFields []customField `json:"customFields"`
}

type taskList struct {
	Kind          string `json:"kind"`
	NextPageToken string `json:"nextPageToken"`
	Data          []task `json:"data"`
}

type customFieldList struct {
	Data []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"data"`
}

// Transport talks to a Wrike-style task API. Each entity type lives in its
// own folder; mapped fields are either task attributes or custom fields keyed
// by custom field id.
type Transport struct {
	api     *remote.JSONClient
	folders map[models.EntityType]string
}

// New creates a Transport from configuration.
func New(cfg Config) *Transport {
	return NewWithClient(remote.NewJSONClient(models.SystemProject, cfg.BaseURL, cfg.Token, cfg.timeout()), cfg.Folders())
}

// NewWithClient creates a Transport on an existing JSON client.
func NewWithClient(api *remote.JSONClient, folders map[models.EntityType]string) *Transport {
	return &Transport{api: api, folders: folders}
}

// System implements remote.Transport.
func (t *Transport) System() models.System {
	return models.SystemProject
}

func (t *Transport) folder(et models.EntityType) (string, error) {
	id, ok := t.folders[et]
	if !ok {
		return "", fmt.Errorf("no project folder configured for %s", et)
	}
	return id, nil
}

// Fetch lists the tasks of the entity type's folder, following page tokens.
func (t *Transport) Fetch(ctx context.Context, et models.EntityType, since *time.Time) ([]models.RawRecord, error) {
	folder, err := t.folder(et)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("fields", `["customFields","description"]`)
	q.Set("pageSize", strconv.Itoa(pageSize))
	if since != nil {
		q.Set("updatedDate", fmt.Sprintf(`{"start":"%s"}`, since.UTC().Format("2006-01-02T15:04:05Z")))
	}

	var records []models.RawRecord
	for {
		var page taskList
		if err := t.api.Do(ctx, http.MethodGet, "/folders/"+url.PathEscape(folder)+"/tasks", q, nil, &page); err != nil {
			return nil, err
		}
		for _, tk := range page.Data {
			records = append(records, toRecord(tk))
		}
		if page.NextPageToken == "" {
			return records, nil
		}
		q.Set("nextPageToken", page.NextPageToken)
	}
}

// Create adds a task to the entity type's folder.
func (t *Transport) Create(ctx context.Context, et models.EntityType, fields map[string]any) (string, error) {
	folder, err := t.folder(et)
	if err != nil {
		return "", err
	}
	var out taskList
	if err := t.api.Do(ctx, http.MethodPost, "/folders/"+url.PathEscape(folder)+"/tasks", nil, taskBody(fields), &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 || out.Data[0].ID == "" {
		return "", fmt.Errorf("create %s: response carried no task id", et)
	}
	return out.Data[0].ID, nil
}

// Update modifies an existing task.
func (t *Transport) Update(ctx context.Context, et models.EntityType, remoteID string, fields map[string]any) error {
	return t.api.Do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(remoteID), nil, taskBody(fields), nil)
}

// Fields implements remote.SchemaInspector. Custom fields are account wide,
// so every entity type reports the same set.
func (t *Transport) Fields(ctx context.Context, et models.EntityType) ([]string, error) {
	var out customFieldList
	if err := t.api.Do(ctx, http.MethodGet, "/customfields", nil, nil, &out); err != nil {
		return nil, err
	}
	names := append([]string(nil), builtinFields...)
	for _, cf := range out.Data {
		names = append(names, cf.ID)
	}
	return names, nil
}

func toRecord(tk task) models.RawRecord {
	fields := map[string]any{
		FieldTitle:       tk.Title,
		FieldDescription: tk.Description,
		FieldStatus:      tk.Status,
		FieldImportance:  tk.Importance,
	}
	for _, cf := range tk.CustomFields {
		fields[cf.ID] = cf.Value
	}
	return models.RawRecord{ID: tk.ID, Fields: fields, CreatedAt: tk.CreatedDate}
}

// taskBody splits fields into task attributes and custom fields. A nil value
// clears the field.
func taskBody(fields map[string]any) map[string]any {
	body := map[string]any{}
	var custom []customField
	for name, v := range fields {
		if v == nil {
			v = ""
		}
		switch name {
		case FieldTitle, FieldDescription, FieldStatus, FieldImportance:
			body[name] = v
		default:
			custom = append(custom, customField{ID: name, Value: v})
		}
	}
	if len(custom) > 0 {
		sort.Slice(custom, func(i, j int) bool { return custom[i].ID < custom[j].ID })
		body["customFields"] = custom
	}
	return body
}
