package directory

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"

	"github.com/getmockd/mockidp/internal/id"
	"github.com/getmockd/mockidp/pkg/logging"
)

// ErrDuplicate is returned when adding a user or application whose key is
// already taken.
var ErrDuplicate = errors.New("already exists")

// Application is a registered client application.
type Application struct {
	AppID         string   `json:"appId"`
	DisplayName   string   `json:"displayName"`
	ClientSecret  string   `json:"clientSecret,omitempty"`
	RedirectURIs  []string `json:"redirectUris"`
	AllowedScopes []string `json:"allowedScopes"`
}

func (a Application) clone() Application {
	a.RedirectURIs = slices.Clone(a.RedirectURIs)
	a.AllowedScopes = slices.Clone(a.AllowedScopes)
	return a
}

// Applications is the application registry.
type Applications struct {
	mu     sync.RWMutex
	path   string
	apps   []Application
	byID   map[string]int
	logger *slog.Logger
}

// OpenApplications loads the applications file at path, seeding the
// default applications when it does not exist.
func OpenApplications(path string, logger *slog.Logger) (*Applications, error) {
	logger = logging.Component(logger, "directory")

	var apps []Application
	err := loadJSON(path, applicationsSchema, &apps)
	switch {
	case err == nil:
		logger.Info("loaded applications", "path", path, "count", len(apps))
	case errors.Is(err, fs.ErrNotExist):
		apps = DefaultApplications()
		if err := writeJSONAtomic(path, apps); err != nil {
			return nil, err
		}
		logger.Info("seeded default applications", "path", path, "count", len(apps))
	default:
		return nil, err
	}

	a, err := newApplications(apps, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.path = path
	return a, nil
}

// NewApplications builds an in-memory registry. Add does not persist.
func NewApplications(apps []Application, logger *slog.Logger) (*Applications, error) {
	return newApplications(apps, logging.Component(logger, "directory"))
}

func newApplications(apps []Application, logger *slog.Logger) (*Applications, error) {
	a := &Applications{
		byID:   make(map[string]int, len(apps)),
		logger: logger,
	}
	for _, app := range apps {
		if err := a.insert(app); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Applications) insert(app Application) error {
	if _, ok := a.byID[app.AppID]; ok {
		return fmt.Errorf("%w: application %q", ErrDuplicate, app.AppID)
	}
	if app.RedirectURIs == nil {
		app.RedirectURIs = []string{}
	}
	if app.AllowedScopes == nil {
		app.AllowedScopes = []string{}
	}
	a.apps = append(a.apps, app.clone())
	a.byID[app.AppID] = len(a.apps) - 1
	return nil
}

// FindByID returns a copy of the application with the given client id.
func (a *Applications) FindByID(clientID string) (*Application, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.byID[clientID]
	if !ok {
		return nil, false
	}
	app := a.apps[i].clone()
	return &app, true
}

// VerifySecret reports whether secret equals the registered secret. An
// application without a secret never verifies.
func (a *Applications) VerifySecret(clientID, secret string) bool {
	app, ok := a.FindByID(clientID)
	if !ok || app.ClientSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(app.ClientSecret), []byte(secret)) == 1
}

// IsRedirectURIRegistered reports an exact match against the registered
// redirect URIs.
func (a *Applications) IsRedirectURIRegistered(clientID, uri string) bool {
	app, ok := a.FindByID(clientID)
	if !ok {
		return false
	}
	return slices.Contains(app.RedirectURIs, uri)
}

// List returns a copy of all applications in insertion order.
func (a *Applications) List() []Application {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Application, len(a.apps))
	for i, app := range a.apps {
		out[i] = app.clone()
	}
	return out
}

// Add stores app and rewrites the file. An empty AppID is replaced by a
// UUID.
func (a *Applications) Add(app Application) (*Application, error) {
	if app.DisplayName == "" {
		return nil, errors.New("displayName is required")
	}
	if app.AppID == "" {
		app.AppID = id.UUID()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.insert(app); err != nil {
		return nil, err
	}
	if a.path != "" {
		if err := writeJSONAtomic(a.path, a.apps); err != nil {
			a.apps = a.apps[:len(a.apps)-1]
			delete(a.byID, app.AppID)
			return nil, err
		}
	}
	a.logger.Info("added application", "app_id", app.AppID)

	out := a.apps[len(a.apps)-1].clone()
	return &out, nil
}
