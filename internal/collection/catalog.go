package collection

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/filter"
	"github.com/privacyops/console/internal/query"
)

// Resource names.
const (
	PrivacyRequests = "privacy-requests"
	Connections     = "connections"
	Users           = "users"
	ConnectionTypes = "connection-types"
)

const masked = "********"

const displayTime = "Jan 2, 2006 15:04"

// Factory builds the controller of one resource.
type Factory func(deps Deps, opts Options) Collection

// Catalog lists the resources the console serves.
var Catalog = map[string]Factory{
	PrivacyRequests: func(d Deps, o Options) Collection { return New(PrivacyRequestResource(), d, o) },
	Connections:     func(d Deps, o Options) Collection { return New(ConnectionResource(), d, o) },
	Users:           func(d Deps, o Options) Collection { return New(UserResource(), d, o) },
	ConnectionTypes: func(d Deps, o Options) Collection { return New(ConnectionTypeResource(), d, o) },
}

// Titles maps catalog names to display titles without building controllers.
var Titles = map[string]string{
	PrivacyRequests: "Privacy requests",
	Connections:     "Connections",
	Users:           "Users",
	ConnectionTypes: "Connection types",
}

// Names returns the catalog names in display order.
func Names() []string {
	names := make([]string, 0, len(Catalog))
	for name := range Catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PrivacyRequestResource is the privacy request queue.
func PrivacyRequestResource() Resource[api.PrivacyRequest] {
	return Resource[api.PrivacyRequest]{
		Name:  PrivacyRequests,
		Path:  api.PathPrivacyRequest,
		Title: Titles[PrivacyRequests],
		Schema: query.Schema{
			SearchKey: "request_id",
			StatusKey: "status",
			FromKey:   "created_gt",
			ToKey:     "created_lt",
			Constants: map[string]string{"include_identities": "true"},
		},
		Rules: filter.Rules{
			Statuses:   api.PrivacyRequestStatuses,
			SortFields: []string{"created_at", "status", "days_left"},
		},
		Columns:  []string{"Request ID", "Status", "Days left", "Request type", "Subject identity", "Time received", "Reviewed by"},
		Editable: []string{"external_id"},
		List: func(ctx context.Context, c *api.Client, p url.Values) (api.Page[api.PrivacyRequest], error) {
			return c.ListPrivacyRequests(ctx, p)
		},
		Get: func(ctx context.Context, c *api.Client, id string) (*api.PrivacyRequest, error) {
			return c.GetPrivacyRequest(ctx, id)
		},
		Update: func(ctx context.Context, c *api.Client, id string, fields map[string]any) error {
			_, err := c.UpdatePrivacyRequest(ctx, id, fields)
			return err
		},
		Mask: MaskIdentity,
		Row: func(pr api.PrivacyRequest) Row {
			daysLeft := ""
			if pr.DaysLeft != nil {
				daysLeft = strconv.Itoa(*pr.DaysLeft)
			}
			identity := pr.Identity.Email
			if identity == "" {
				identity = pr.Identity.PhoneNumber
			}
			reviewer := pr.ReviewedBy
			if pr.Reviewer != nil && pr.Reviewer.Username != "" {
				reviewer = pr.Reviewer.Username
			}
			return Row{ID: pr.ID, Cells: []string{
				pr.ID, pr.Status, daysLeft, pr.Policy.Name, identity, formatTime(pr.CreatedAt), reviewer,
			}}
		},
	}
}

// MaskIdentity hides the data subject identifiers of pr.
func MaskIdentity(pr api.PrivacyRequest) api.PrivacyRequest {
	if pr.Identity.Email != "" {
		pr.Identity.Email = masked
	}
	if pr.Identity.PhoneNumber != "" {
		pr.Identity.PhoneNumber = masked
	}
	return pr
}

// ConnectionResource is the datastore connection list.
func ConnectionResource() Resource[api.Connection] {
	return Resource[api.Connection]{
		Name:  Connections,
		Path:  api.PathConnection,
		Title: Titles[Connections],
		Schema: query.Schema{
			SearchKey: "search",
		},
		Rules: filter.Rules{
			Facets: map[string][]string{
				"connection_type": nil,
				"system_type":     {"database", "saas", "manual"},
				"test_status":     {"passed", "failed", "untested"},
				"disabled_status": {"disabled", "active"},
			},
			SortFields: []string{"name", "created_at", "connection_type"},
		},
		Columns:  []string{"Name", "Key", "Type", "Access", "Status", "Last tested"},
		Editable: []string{"name", "description", "access", "disabled"},
		List: func(ctx context.Context, c *api.Client, p url.Values) (api.Page[api.Connection], error) {
			return c.ListConnections(ctx, p)
		},
		Get: func(ctx context.Context, c *api.Client, key string) (*api.Connection, error) {
			return c.GetConnection(ctx, key)
		},
		Update: func(ctx context.Context, c *api.Client, key string, fields map[string]any) error {
			_, err := c.UpdateConnection(ctx, key, fields)
			return err
		},
		Row: func(conn api.Connection) Row {
			status := "Enabled"
			if conn.Disabled {
				status = "Disabled"
			}
			tested := "Untested"
			if conn.LastTestTimestamp != nil {
				tested = formatTime(*conn.LastTestTimestamp)
				if conn.LastTestSucceeded != nil && !*conn.LastTestSucceeded {
					tested += " (failed)"
				}
			}
			return Row{ID: conn.Key, Cells: []string{
				conn.Name, conn.Key, conn.ConnectionType, conn.Access, status, tested,
			}}
		},
	}
}

// UserResource is the operator account list.
func UserResource() Resource[api.User] {
	return Resource[api.User]{
		Name:  Users,
		Path:  api.PathUser,
		Title: Titles[Users],
		Schema: query.Schema{
			SearchKey: "username",
		},
		Rules:    filter.Rules{SortFields: []string{"username", "created_at"}},
		Columns:  []string{"Username", "First name", "Last name", "Created"},
		Editable: []string{"username", "first_name", "last_name"},
		List: func(ctx context.Context, c *api.Client, p url.Values) (api.Page[api.User], error) {
			return c.ListUsers(ctx, p)
		},
		Get: func(ctx context.Context, c *api.Client, id string) (*api.User, error) {
			return c.GetUser(ctx, id)
		},
		Update: func(ctx context.Context, c *api.Client, id string, fields map[string]any) error {
			_, err := c.UpdateUser(ctx, id, fields)
			return err
		},
		Row: func(u api.User) Row {
			return Row{ID: u.ID, Cells: []string{u.Username, u.FirstName, u.LastName, formatTime(u.CreatedAt)}}
		},
	}
}

// ConnectionTypeResource is the connector catalogue.
func ConnectionTypeResource() Resource[api.ConnectionType] {
	return Resource[api.ConnectionType]{
		Name:  ConnectionTypes,
		Path:  api.PathConnectionType,
		Title: Titles[ConnectionTypes],
		Schema: query.Schema{
			SearchKey: "search",
		},
		Rules: filter.Rules{
			Facets: map[string][]string{"system_type": {"database", "saas", "manual"}},
		},
		DefaultSize: 100,
		Columns:     []string{"Identifier", "Name", "Type"},
		List: func(ctx context.Context, c *api.Client, p url.Values) (api.Page[api.ConnectionType], error) {
			return c.ListConnectionTypes(ctx, p)
		},
		Row: func(ct api.ConnectionType) Row {
			return Row{ID: ct.Identifier, Cells: []string{ct.Identifier, ct.HumanReadable, ct.Type}}
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(displayTime)
}
