package resources

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/tesla-access/tesla-client/authclient"
	"github.com/tesla-access/tesla-client/authmodel"
)

type ReportKind string

const (
	ReportDeviceAccess    ReportKind = "deviceAccess"
	ReportAccessCardEdits ReportKind = "accessCardEdits"
	ReportUserEdits       ReportKind = "userEdits"
	ReportUserAccess      ReportKind = "userAccess"
)

// ReportKinds lists every report the backend serves.
var ReportKinds = []ReportKind{ReportDeviceAccess, ReportAccessCardEdits, ReportUserEdits, ReportUserAccess}

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ReportQuery filters report rows. Zero values are omitted.
type ReportQuery struct {
	Page         int
	PerPage      int
	UserID       string
	AccessCardID string
	AccessNodeID string
	DeviceID     string
	Action       string
	StartDate    time.Time
	EndDate      time.Time
}

type Reports struct {
	caller Caller
}

// Export fetches a report. The body is returned as the backend sent it:
// CSV text for FormatCSV, a JSON document otherwise.
func (r *Reports) Export(ctx context.Context, kind ReportKind, q ReportQuery, format Format) ([]byte, error) {
	if !slices.Contains(ReportKinds, kind) {
		return nil, authmodel.NewServerError("unknown report " + string(kind))
	}

	v := ListQuery{Page: q.Page, PerPage: q.PerPage}.values()
	setIf(v, "userId", q.UserID)
	setIf(v, "accessCardId", q.AccessCardID)
	setIf(v, "accessNodeId", q.AccessNodeID)
	setIf(v, "deviceId", q.DeviceID)
	setIf(v, "action", q.Action)
	if !q.StartDate.IsZero() {
		v.Set("startDate", q.StartDate.Format(time.DateOnly))
	}
	if !q.EndDate.IsZero() {
		v.Set("endDate", q.EndDate.Format(time.DateOnly))
	}

	contentType := authclient.ContentTypeJSON
	if format == FormatCSV {
		contentType = authclient.ContentTypeCSV
	}
	res, err := r.caller.Call(ctx, authclient.Request{
		URI:         withQuery("/api/reports/"+string(kind), v),
		Method:      http.MethodGet,
		ContentType: contentType,
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}
