package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crm-bridge/core/models"
	"crm-bridge/core/remote"
)

const (
	pageLimit = 100
	// searchLimit is the largest page the search endpoint accepts.
	searchLimit = 200
)

var objectTypes = map[models.EntityType]string{
	models.EntityCompany: "companies",
	models.EntityContact: "contacts",
	models.EntityDeal:    "deals",
}

type object struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	Archived   bool           `json:"archived"`
}

type objectPage struct {
	Results []object `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

func (p *objectPage) after() string {
	if p.Paging == nil || p.Paging.Next == nil {
		return ""
	}
	return p.Paging.Next.After
}

type filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type searchRequest struct {
	FilterGroups []struct {
		Filters []filter `json:"filters"`
	} `json:"filterGroups"`
	Properties []string `json:"properties"`
	Limit      int      `json:"limit"`
	After      string   `json:"after,omitempty"`
}

// PropertySource names the properties to request per entity type.
// *mapper.Mapper satisfies it through RemoteFields.
type PropertySource interface {
	RemoteFields(system models.System, et models.EntityType) []string
}

// Transport talks to a HubSpot-style CRM objects API.
type Transport struct {
	api   *remote.JSONClient
	props PropertySource
}

// New creates a Transport from configuration.
func New(cfg Config, props PropertySource) *Transport {
	return NewWithClient(remote.NewJSONClient(models.SystemCRM, cfg.BaseURL, cfg.Token, cfg.timeout()), props)
}

// NewWithClient creates a Transport on an existing JSON client.
func NewWithClient(api *remote.JSONClient, props PropertySource) *Transport {
	return &Transport{api: api, props: props}
}

// System implements remote.Transport.
func (t *Transport) System() models.System {
	return models.SystemCRM
}

func objectPath(et models.EntityType) (string, error) {
	name, ok := objectTypes[et]
	if !ok {
		return "", fmt.Errorf("unsupported crm object %q", et)
	}
	return "/crm/v3/objects/" + name, nil
}

// Fetch lists objects with the mapped properties. With since set it searches
// by last modification instead of listing everything.
func (t *Transport) Fetch(ctx context.Context, et models.EntityType, since *time.Time) ([]models.RawRecord, error) {
	path, err := objectPath(et)
	if err != nil {
		return nil, err
	}
	props := t.props.RemoteFields(models.SystemCRM, et)

	if since != nil {
		return t.search(ctx, path, props, *since)
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageLimit))
	q.Set("archived", "false")
	if len(props) > 0 {
		q.Set("properties", strings.Join(props, ","))
	}

	var records []models.RawRecord
	for {
		var page objectPage
		if err := t.api.Do(ctx, http.MethodGet, path, q, nil, &page); err != nil {
			return nil, err
		}
		records = appendRecords(records, page.Results)
		next := page.after()
		if next == "" {
			return records, nil
		}
		q.Set("after", next)
	}
}

func (t *Transport) search(ctx context.Context, path string, props []string, since time.Time) ([]models.RawRecord, error) {
	req := searchRequest{Properties: props, Limit: searchLimit}
	req.FilterGroups = make([]struct {
		Filters []filter `json:"filters"`
	}, 1)
	req.FilterGroups[0].Filters = []filter{{
		PropertyName: "hs_lastmodifieddate",
		Operator:     "GTE",
		Value:        strconv.FormatInt(since.UnixMilli(), 10),
	}}

	var records []models.RawRecord
	for {
		var page objectPage
		if err := t.api.Do(ctx, http.MethodPost, path+"/search", nil, req, &page); err != nil {
			return nil, err
		}
		records = appendRecords(records, page.Results)
		next := page.after()
		if next == "" {
			return records, nil
		}
		req.After = next
	}
}

func appendRecords(records []models.RawRecord, objs []object) []models.RawRecord {
	for _, o := range objs {
		if o.Archived {
			continue
		}
		records = append(records, models.RawRecord{ID: o.ID, Fields: o.Properties, CreatedAt: o.CreatedAt})
	}
	return records
}

// Create creates an object and returns its id.
func (t *Transport) Create(ctx context.Context, et models.EntityType, fields map[string]any) (string, error) {
	path, err := objectPath(et)
	if err != nil {
		return "", err
	}
	var out object
	if err := t.api.Do(ctx, http.MethodPost, path, nil, map[string]any{"properties": properties(fields)}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("create %s: response carried no object id", et)
	}
	return out.ID, nil
}

// Update patches the given properties of an object.
func (t *Transport) Update(ctx context.Context, et models.EntityType, remoteID string, fields map[string]any) error {
	path, err := objectPath(et)
	if err != nil {
		return err
	}
	return t.api.Do(ctx, http.MethodPatch, path+"/"+url.PathEscape(remoteID), nil, map[string]any{"properties": properties(fields)}, nil)
}

// Fields implements remote.SchemaInspector with the object's property definitions.
func (t *Transport) Fields(ctx context.Context, et models.EntityType) ([]string, error) {
	name, ok := objectTypes[et]
	if !ok {
		return nil, fmt.Errorf("unsupported crm object %q", et)
	}
	var out struct {
		Results []struct {
			Name string `json:"name"`
		} `json:"results"`
	}
	if err := t.api.Do(ctx, http.MethodGet, "/crm/v3/properties/"+name, nil, nil, &out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Results))
	for _, p := range out.Results {
		names = append(names, p.Name)
	}
	return names, nil
}

// properties converts a field map to a property map. The CRM clears a
// property set to the empty string.
func properties(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == nil {
			v = ""
		}
		out[k] = v
	}
	return out
}
