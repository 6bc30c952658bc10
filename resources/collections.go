package resources

import (
	"context"
	"encoding/json"
	"net/http"
)

type AccessCard struct {
	ID                  string `json:"id,omitempty"`
	CardNumber          string `json:"cardNumber"`
	FacilityCode        int    `json:"facilityCode"`
	CardType            int    `json:"cardType"`
	Status              string `json:"status,omitempty"`
	CreatedAt           string `json:"createdAt,omitempty"`
	LastUpdatedAt       string `json:"lastUpdatedAt,omitempty"`
	LastUpdatedByUserID string `json:"lastUpdatedByUserId,omitempty"`
}

type AccessNode struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Status     string `json:"status,omitempty"`
	MacAddress string `json:"macAddress"`
	DeviceID   string `json:"deviceId,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// Collection is a create/list/view/update/archive endpoint family whose
// list response is wrapped in listKey and whose single-record view is
// wrapped in "view". Create and Update answer with the bare record.
type Collection[T any] struct {
	caller  Caller
	path    string
	listKey string
}

func (c *Collection[T]) List(ctx context.Context, q ListQuery) ([]T, error) {
	out, err := get[map[string]json.RawMessage](ctx, c.caller, withQuery(c.path, q.values()))
	if err != nil {
		return nil, err
	}
	var items []T
	if raw, ok := (*out)[c.listKey]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	uri, err := itemPath(c.path, id)
	if err != nil {
		return nil, err
	}
	out, err := get[struct {
		View T `json:"view"`
	}](ctx, c.caller, uri)
	if err != nil {
		return nil, err
	}
	return &out.View, nil
}

// Create adds rec and returns the stored record with its new id.
func (c *Collection[T]) Create(ctx context.Context, rec T) (*T, error) {
	return send[T](ctx, c.caller, http.MethodPost, c.path, rec)
}

// Update replaces the record id with rec.
func (c *Collection[T]) Update(ctx context.Context, id string, rec T) (*T, error) {
	return put[T](ctx, c.caller, c.path, id, rec)
}

func (c *Collection[T]) Archive(ctx context.Context, id string) error {
	uri, err := itemPath(c.path, id)
	if err != nil {
		return err
	}
	_, err = archive(ctx, c.caller, uri)
	return err
}

const devicesPath = "/api/devices"

type Device struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at,omitempty"`
}

type Devices struct {
	caller Caller
}

func (d *Devices) Create(ctx context.Context, dev Device) (*Device, error) {
	return send[Device](ctx, d.caller, http.MethodPost, devicesPath, dev)
}

func (d *Devices) Update(ctx context.Context, id string, dev Device) (*Device, error) {
	return put[Device](ctx, d.caller, devicesPath, id, dev)
}

// Archive deletes the device.
func (d *Devices) Archive(ctx context.Context, id string) error {
	uri, err := itemPath(devicesPath, id)
	if err != nil {
		return err
	}
	_, err = archive(ctx, d.caller, uri)
	return err
}
