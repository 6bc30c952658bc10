// Package resources creates, reads, updates and archives the TESLA admin
// records (users, access cards, access nodes, devices) and exports reports,
// all through an authenticated session.
package resources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tesla-access/tesla-client/authclient"
	"github.com/tesla-access/tesla-client/authmodel"
)

// Caller performs one authenticated request. *session.Manager satisfies it.
type Caller interface {
	Call(ctx context.Context, req authclient.Request) (*authclient.Result, error)
}

// Client groups the resource endpoints.
type Client struct {
	Users       *Users
	AccessCards *Collection[AccessCard]
	AccessNodes *Collection[AccessNode]
	Devices     *Devices
	Reports     *Reports
}

// New creates a Client that sends every request through caller.
func New(caller Caller) *Client {
	return &Client{
		Users:       &Users{caller: caller},
		AccessCards: &Collection[AccessCard]{caller: caller, path: "/api/accessCards", listKey: "access_cards"},
		AccessNodes: &Collection[AccessNode]{caller: caller, path: "/api/accessNodes", listKey: "access_nodes"},
		Devices:     &Devices{caller: caller},
		Reports:     &Reports{caller: caller},
	}
}

// ListQuery is the filter, order and paging understood by every list
// endpoint. Zero values are omitted.
type ListQuery struct {
	OrderBy  string
	OrderDir string // "asc" or "desc"
	Status   string
	Page     int
	PerPage  int
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	setIf(v, "orderBy", q.OrderBy)
	setIf(v, "orderDir", q.OrderDir)
	setIf(v, "status", q.Status)
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("perPage", strconv.Itoa(q.PerPage))
	}
	return v
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

func get[T any](ctx context.Context, c Caller, uri string) (*T, error) {
	return send[T](ctx, c, http.MethodGet, uri, nil)
}

// send issues one JSON request and decodes the response into T.
func send[T any](ctx context.Context, c Caller, method, uri string, body any) (*T, error) {
	res, err := c.Call(ctx, authclient.Request{URI: uri, Method: method, Body: body})
	if err != nil {
		return nil, err
	}
	return authclient.Decode[T](res)
}

// put replaces the record at base/id with in.
func put[T any](ctx context.Context, c Caller, base, id string, in any) (*T, error) {
	uri, err := itemPath(base, id)
	if err != nil {
		return nil, err
	}
	return send[T](ctx, c, http.MethodPut, uri, in)
}

func archive(ctx context.Context, c Caller, uri string) (*authmodel.StatusMessage, error) {
	res, err := c.Call(ctx, authclient.Request{URI: uri, Method: http.MethodDelete})
	if err != nil {
		return nil, err
	}
	return authclient.Decode[authmodel.StatusMessage](res)
}

func itemPath(base, id string) (string, error) {
	if id == "" {
		return "", authmodel.NewServerError("id required")
	}
	return base + "/" + url.PathEscape(id), nil
}
