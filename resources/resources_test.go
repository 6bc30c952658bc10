package resources_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tesla-access/tesla-client/authclient"
	"github.com/tesla-access/tesla-client/internal/authtest"
	"github.com/tesla-access/tesla-client/kvstore"
	"github.com/tesla-access/tesla-client/resources"
	"github.com/tesla-access/tesla-client/session"
)

func setup(t *testing.T) (*authtest.Server, *resources.Client) {
	t.Helper()
	srv := authtest.New()
	t.Cleanup(srv.Close)

	client := authclient.New(srv.URL)
	_, err := client.Register(context.Background(), "bob", "builder-pw", "Bob", "Builder")
	require.NoError(t, err)

	m, err := session.NewManager(client, kvstore.NewMemoryStore(), session.WithRefreshTick(time.Hour))
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Login(context.Background(), authtest.DefaultUsername, authtest.DefaultPassword))

	return srv, resources.New(m)
}

func TestUsers(t *testing.T) {
	srv, c := setup(t)
	ctx := context.Background()

	all, err := c.Users.List(ctx, resources.UserQuery{ListQuery: resources.ListQuery{OrderBy: "username"}})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, authtest.DefaultUsername, all[0].Username)
	require.Equal(t, "bob", all[1].Username)

	admins, err := c.Users.List(ctx, resources.UserQuery{Role: authtest.RoleAdmin, ListQuery: resources.ListQuery{Page: 1, PerPage: 5}})
	require.NoError(t, err)
	require.Len(t, admins, 1)

	req, ok := srv.LastRequest("/api/users")
	require.True(t, ok)
	q, err := url.ParseQuery(req.RawQuery)
	require.NoError(t, err)
	require.Equal(t, "admin", q.Get("role"))
	require.Equal(t, "5", q.Get("perPage"))

	bob, err := c.Users.Get(ctx, all[1].ID)
	require.NoError(t, err)
	require.Equal(t, "Builder", bob.LastName)
	require.Equal(t, authtest.StatusActive, bob.Status)

	require.NoError(t, c.Users.Archive(ctx, bob.ID))
	active, err := c.Users.List(ctx, resources.UserQuery{})
	require.NoError(t, err)
	require.Len(t, active, 1)

	archived, err := c.Users.List(ctx, resources.UserQuery{ListQuery: resources.ListQuery{Status: authtest.StatusArchived}})
	require.NoError(t, err)
	require.Len(t, archived, 1)
	require.Equal(t, bob.ID, archived[0].ID)

	before := srv.TotalCalls()
	_, err = c.Users.Get(ctx, "")
	require.EqualError(t, err, "id required")
	require.Equal(t, before, srv.TotalCalls())

	_, err = c.Users.Get(ctx, "missing")
	require.EqualError(t, err, "unable to find a user with that id")
}

func TestAccessCardsAndNodes(t *testing.T) {
	_, c := setup(t)
	ctx := context.Background()

	cards, err := c.AccessCards.List(ctx, resources.ListQuery{})
	require.NoError(t, err)
	require.Len(t, cards, 2, "archived cards are hidden by default")

	card, err := c.AccessCards.Get(ctx, "card-1")
	require.NoError(t, err)
	require.Equal(t, "10001", card.CardNumber)
	require.Equal(t, 12, card.FacilityCode)

	require.NoError(t, c.AccessCards.Archive(ctx, "card-1"))
	cards, err = c.AccessCards.List(ctx, resources.ListQuery{})
	require.NoError(t, err)
	require.Len(t, cards, 1)

	nodes, err := c.AccessNodes.List(ctx, resources.ListQuery{OrderDir: "desc"})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Equal(t, "laser cutter", nodes[0].Name)

	node, err := c.AccessNodes.Get(ctx, "node-1")
	require.NoError(t, err)
	require.Equal(t, "door", node.Type)
}

func TestUsersCreateAndUpdate(t *testing.T) {
	srv, c := setup(t)
	ctx := context.Background()

	carol, err := c.Users.Create(ctx, resources.UserInput{Username: "carol", Password: "pw-carol", FirstName: "Carol", Role: authtest.RoleEditor})
	require.NoError(t, err)
	require.NotEmpty(t, carol.ID)
	require.Equal(t, authtest.RoleEditor, carol.Role)
	require.Equal(t, authtest.StatusActive, carol.Status)

	_, err = c.Users.Create(ctx, resources.UserInput{Username: "carol", Password: "again"})
	require.EqualError(t, err, "a user with that name already exists")

	_, err = c.Users.Create(ctx, resources.UserInput{Username: "dave", Role: "owner", Password: "pw"})
	require.EqualError(t, err, "invalid role")

	before := srv.TotalCalls()
	_, err = c.Users.Create(ctx, resources.UserInput{Username: "dave"})
	require.EqualError(t, err, "password required")
	_, err = c.Users.Update(ctx, carol.ID, resources.UserInput{})
	require.EqualError(t, err, "username required")
	_, err = c.Users.Update(ctx, "", resources.UserInput{Username: "carol"})
	require.EqualError(t, err, "id required")
	require.Equal(t, before, srv.TotalCalls())

	t.Run("update is retried after a refresh", func(t *testing.T) {
		srv.ExpireAccessTokens()
		refreshes := srv.Calls(authtest.PathRefresh)

		updated, err := c.Users.Update(ctx, carol.ID, resources.UserInput{Username: "carol", LastName: "Jones", Status: authtest.StatusInactive})
		require.NoError(t, err)
		require.Equal(t, "Jones", updated.LastName)
		require.Equal(t, "Carol", updated.FirstName)
		require.Equal(t, authtest.StatusInactive, updated.Status)
		require.Equal(t, refreshes+1, srv.Calls(authtest.PathRefresh))

		var puts []authtest.RecordedRequest
		for _, req := range srv.Requests() {
			if req.Method == http.MethodPut {
				puts = append(puts, req)
			}
		}
		require.Len(t, puts, 2)
		require.Equal(t, "/api/users/"+carol.ID, puts[1].Path)
		require.NotEqual(t, puts[0].Authorization, puts[1].Authorization)
		require.JSONEq(t, string(puts[0].Body), string(puts[1].Body))
	})

	_, err = c.Users.Update(ctx, "missing", resources.UserInput{Username: "ghost"})
	require.EqualError(t, err, "unable to find a user with that id")
}

func TestCollectionsCreateAndUpdate(t *testing.T) {
	_, c := setup(t)
	ctx := context.Background()

	card, err := c.AccessCards.Create(ctx, resources.AccessCard{CardNumber: "10004", FacilityCode: 12, CardType: 26})
	require.NoError(t, err)
	require.NotEmpty(t, card.ID)
	require.Equal(t, "active", card.Status)

	_, err = c.AccessCards.Create(ctx, resources.AccessCard{CardNumber: "10001"})
	require.EqualError(t, err, "a record with that cardNumber already exists")
	_, err = c.AccessCards.Create(ctx, resources.AccessCard{})
	require.EqualError(t, err, "missing cardNumber")

	lost, err := c.AccessCards.Update(ctx, "card-2", resources.AccessCard{CardNumber: "10002", FacilityCode: 12, CardType: 26, Status: "active"})
	require.NoError(t, err)
	require.Equal(t, "active", lost.Status)
	require.Equal(t, "card-2", lost.ID)

	node, err := c.AccessNodes.Create(ctx, resources.AccessNode{Name: "band saw", Type: "machine", MacAddress: "00:1a:2b:3c:4d:60"})
	require.NoError(t, err)
	require.Equal(t, "available", node.Status)

	renamed, err := c.AccessNodes.Update(ctx, node.ID, resources.AccessNode{Name: "bandsaw", Type: "machine", MacAddress: node.MacAddress})
	require.NoError(t, err)
	require.Equal(t, "bandsaw", renamed.Name)
	require.Equal(t, "available", renamed.Status)

	_, err = c.AccessNodes.Update(ctx, "node-9", resources.AccessNode{Name: "x", Type: "door", MacAddress: "m"})
	require.EqualError(t, err, "unable to find an access node with that id")

	nodes, err := c.AccessNodes.List(ctx, resources.ListQuery{})
	require.NoError(t, err)
	require.Len(t, nodes, 3)
}

func TestDevices(t *testing.T) {
	_, c := setup(t)
	ctx := context.Background()

	dev, err := c.Devices.Create(ctx, resources.Device{Name: "drill press", Type: "machine"})
	require.NoError(t, err)
	require.NotEmpty(t, dev.ID)

	_, err = c.Devices.Create(ctx, resources.Device{Name: "drill press", Type: "machine"})
	require.EqualError(t, err, "a record with that name already exists")
	_, err = c.Devices.Create(ctx, resources.Device{Name: "lathe"})
	require.EqualError(t, err, "missing type or name")

	dev, err = c.Devices.Update(ctx, dev.ID, resources.Device{Name: "pillar drill", Type: "machine"})
	require.NoError(t, err)
	require.Equal(t, "pillar drill", dev.Name)

	require.NoError(t, c.Devices.Archive(ctx, dev.ID))
	require.NoError(t, c.Devices.Archive(ctx, "device-1"))
	require.EqualError(t, c.Devices.Archive(ctx, "device-1"), "unable to find a device with that id")
}

func TestReportsExport(t *testing.T) {
	srv, c := setup(t)
	ctx := context.Background()

	t.Run("json", func(t *testing.T) {
		body, err := c.Reports.Export(ctx, resources.ReportUserAccess, resources.ReportQuery{}, resources.FormatJSON)
		require.NoError(t, err)

		var out map[string][]map[string]string
		require.NoError(t, json.Unmarshal(body, &out))
		require.Len(t, out["userAccessLogs"], 1)
		require.Equal(t, "node-1", out["userAccessLogs"][0]["accessNodeId"])
	})

	t.Run("csv passes through after a refresh", func(t *testing.T) {
		srv.ExpireAccessTokens()
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		body, err := c.Reports.Export(ctx, resources.ReportAccessCardEdits, resources.ReportQuery{StartDate: start}, resources.FormatCSV)
		require.NoError(t, err)
		require.Equal(t, "id,accessCardId,status,updatedByUserId,createdAt\n1,card-2,lost,user-1,2024-01-03T09:00:00\n", string(body))
		require.Equal(t, 1, srv.Calls(authtest.PathRefresh))

		req, ok := srv.LastRequest("/api/reports/accessCardEdits")
		require.True(t, ok)
		require.Equal(t, authclient.ContentTypeCSV, req.ContentType)
		require.Equal(t, "startDate=2024-01-01", req.RawQuery)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := c.Reports.Export(ctx, "nope", resources.ReportQuery{}, resources.FormatJSON)
		require.EqualError(t, err, "unknown report nope")
	})
}
