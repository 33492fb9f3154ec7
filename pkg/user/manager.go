package user

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/filesystem/path"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/simos-project/simos/pkg/filesystem/virtual"
	"github.com/simos-project/simos/pkg/filesystem/virtual/storage"
	re_util "github.com/simos-project/simos/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	managerPrometheusMetrics sync.Once

	managerUsers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "simos",
			Subsystem: "user",
			Name:      "manager_users",
			Help:      "Number of user accounts, partitioned by role.",
		},
		[]string{"role"})
)

const homeDirectoryParentName = "home"

// HomeDirectoryParent is the directory in which home directories of
// users are created.
const HomeDirectoryParent = "/" + homeDirectoryParentName

// Minimum length of user names.
const minimumNameLength = 3

// Role of a user.
type Role int

const (
	// RoleUser is the role of regular users.
	RoleUser Role = iota
	// RoleAdministrator is the role of users that manage other
	// users. At least one active administrator is retained at all
	// times.
	RoleAdministrator
)

var roleNames = [...]string{
	RoleUser:          "user",
	RoleAdministrator: "admin",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "unknown"
	}
	return roleNames[r]
}

// ParseRole converts the string representation of a role back to a
// Role.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return Role(r), nil
		}
	}
	return 0, status.Errorf(codes.InvalidArgument, "Invalid role %#v", s)
}

// MarshalText ensures roles are written in their string form when
// encoded as JSON.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses roles stored in JSON documents.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User is a snapshot of a single user account.
type User struct {
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	HomeDirectory string    `json:"home_directory"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Update of the fields of a user account. Fields that are left nil are
// not changed.
type Update struct {
	Role     *Role
	IsActive *bool
}

// Manager of user accounts. Every user owns a home directory in the
// file store, which is created along with the account.
type Manager interface {
	Create(name string, role Role) (User, error)
	// Delete a user account. The home directory of the user is
	// retained.
	Delete(name string) error
	Get(name string) (User, error)
	// List all users, ordered by name.
	List() []User
	Update(name string, update Update) (User, error)
}

// userDocument is the representation of a user in the JSON document in
// which users are stored. Users are keyed by name.
type userDocument struct {
	Role          Role              `json:"role"`
	HomeDirectory string            `json:"home_directory,omitempty"`
	IsActive      *bool             `json:"is_active,omitempty"`
	CreatedAt     re_util.Timestamp `json:"created_at"`
}

type manager struct {
	documentStorage storage.DocumentStorage
	fileStore       virtual.FileStore
	clock           clock.Clock

	lock  sync.Mutex
	users map[string]*User
}

// NewManager creates a Manager that keeps user accounts in memory,
// writing them to a DocumentStorage after every change.
//
// Users are loaded from the DocumentStorage. If no users exist and an
// administrator name is provided, an administrator account with that
// name is created. A document that cannot be read or parsed is
// reported through the ErrorLogger, in which case the manager starts
// without any users other than the administrator.
func NewManager(documentStorage storage.DocumentStorage, fileStore virtual.FileStore, clock clock.Clock, errorLogger util.ErrorLogger, administratorName string) Manager {
	managerPrometheusMetrics.Do(func() {
		prometheus.MustRegister(managerUsers)
	})

	m := &manager{
		documentStorage: documentStorage,
		fileStore:       fileStore,
		clock:           clock,
		users:           map[string]*User{},
	}

	persist := true
	if document, err := documentStorage.Get(); err == nil {
		if users, err := unmarshalUsers(document); err == nil {
			m.users = users
		} else {
			errorLogger.Log(util.StatusWrap(err, "Failed to parse users, starting without users"))
			persist = false
		}
	} else if status.Code(err) != codes.NotFound {
		errorLogger.Log(util.StatusWrap(err, "Failed to load users, starting without users"))
		persist = false
	}

	if len(m.users) == 0 && administratorName != "" {
		u, err := m.newUser(administratorName, RoleAdministrator)
		if err != nil {
			errorLogger.Log(util.StatusWrapf(err, "Failed to create administrator %#v", administratorName))
		} else {
			m.users[u.Name] = u
			if persist {
				if err := m.save(); err != nil {
					errorLogger.Log(err)
				}
			}
		}
	}
	m.updateMetrics()
	return m
}

func unmarshalUsers(document []byte) (map[string]*User, error) {
	var documents map[string]userDocument
	if err := json.Unmarshal(document, &documents); err != nil {
		return nil, util.StatusWrapWithCode(err, codes.InvalidArgument, "Malformed users document")
	}
	users := make(map[string]*User, len(documents))
	for name, d := range documents {
		if err := validateName(name); err != nil {
			return nil, err
		}
		u := &User{
			Name:          name,
			Role:          d.Role,
			HomeDirectory: d.HomeDirectory,
			IsActive:      d.IsActive == nil || *d.IsActive,
			CreatedAt:     d.CreatedAt.Time,
		}
		if u.HomeDirectory == "" {
			u.HomeDirectory = HomeDirectoryParent + "/" + name
		}
		users[name] = u
	}
	return users, nil
}

func validateName(name string) error {
	if _, ok := path.NewComponent(name); !ok {
		return status.Errorf(codes.InvalidArgument, "Invalid user name %#v", name)
	}
	if len(name) < minimumNameLength {
		return status.Errorf(codes.InvalidArgument, "User name %#v must be at least %d characters long", name, minimumNameLength)
	}
	return nil
}

// newUser validates the name of a new user and creates its home
// directory. An existing home directory is reused.
func (m *manager) newUser(name string, role Role) (*User, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	if _, err := m.fileStore.CreateDirectory("/", homeDirectoryParentName); err != nil && status.Code(err) != codes.AlreadyExists {
		return nil, util.StatusWrapf(err, "Failed to create home directory of user %#v", name)
	}
	homeDirectory := HomeDirectoryParent + "/" + name
	if _, err := m.fileStore.CreateDirectory(HomeDirectoryParent, name); err != nil {
		if status.Code(err) != codes.AlreadyExists {
			return nil, util.StatusWrapf(err, "Failed to create home directory of user %#v", name)
		}
		if info, err := m.fileStore.Stat(homeDirectory); err != nil || !info.IsDirectory {
			return nil, status.Errorf(codes.FailedPrecondition, "Home directory %#v of user %#v is not a directory", homeDirectory, name)
		}
	}

	return &User{
		Name:          name,
		Role:          role,
		HomeDirectory: homeDirectory,
		IsActive:      true,
		CreatedAt:     m.clock.Now(),
	}, nil
}

func (m *manager) getUser(name string) (*User, error) {
	u, ok := m.users[name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "User %#v does not exist", name)
	}
	return u, nil
}

// countActiveAdministratorsExcept returns the number of active
// administrators, not counting the user with a given name.
func (m *manager) countActiveAdministratorsExcept(name string) int {
	count := 0
	for _, u := range m.users {
		if u.Name != name && u.Role == RoleAdministrator && u.IsActive {
			count++
		}
	}
	return count
}

func (m *manager) Create(name string, role Role) (User, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.users[name]; ok {
		return User{}, status.Errorf(codes.AlreadyExists, "User %#v already exists", name)
	}
	u, err := m.newUser(name, role)
	if err != nil {
		return User{}, err
	}
	m.users[name] = u
	m.updateMetrics()
	if err := m.save(); err != nil {
		return User{}, err
	}
	return *u, nil
}

func (m *manager) Delete(name string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	u, err := m.getUser(name)
	if err != nil {
		return err
	}
	if u.Role == RoleAdministrator && u.IsActive && m.countActiveAdministratorsExcept(name) == 0 {
		return status.Errorf(codes.FailedPrecondition, "User %#v is the last active administrator", name)
	}
	delete(m.users, name)
	m.updateMetrics()
	return m.save()
}

func (m *manager) Get(name string) (User, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	u, err := m.getUser(name)
	if err != nil {
		return User{}, err
	}
	return *u, nil
}

func (m *manager) List() []User {
	m.lock.Lock()
	defer m.lock.Unlock()

	users := make([]User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Name < users[j].Name
	})
	return users
}

func (m *manager) Update(name string, update Update) (User, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	u, err := m.getUser(name)
	if err != nil {
		return User{}, err
	}
	updated := *u
	if update.Role != nil {
		if *update.Role != RoleUser && *update.Role != RoleAdministrator {
			return User{}, status.Errorf(codes.InvalidArgument, "Invalid role %d", *update.Role)
		}
		updated.Role = *update.Role
	}
	if update.IsActive != nil {
		updated.IsActive = *update.IsActive
	}
	if u.Role == RoleAdministrator && u.IsActive &&
		(updated.Role != RoleAdministrator || !updated.IsActive) &&
		m.countActiveAdministratorsExcept(name) == 0 {
		return User{}, status.Errorf(codes.FailedPrecondition, "User %#v is the last active administrator", name)
	}

	*u = updated
	m.updateMetrics()
	if err := m.save(); err != nil {
		return User{}, err
	}
	return updated, nil
}

func (m *manager) updateMetrics() {
	counts := make([]int, len(roleNames))
	for _, u := range m.users {
		counts[u.Role]++
	}
	for r, count := range counts {
		managerUsers.WithLabelValues(Role(r).String()).Set(float64(count))
	}
}

func (m *manager) save() error {
	documents := make(map[string]userDocument, len(m.users))
	for name, u := range m.users {
		isActive := u.IsActive
		documents[name] = userDocument{
			Role:          u.Role,
			HomeDirectory: u.HomeDirectory,
			IsActive:      &isActive,
			CreatedAt:     re_util.Timestamp{Time: u.CreatedAt},
		}
	}
	document, err := json.MarshalIndent(documents, "", "    ")
	if err != nil {
		return util.StatusWrapWithCode(err, codes.Internal, "Failed to serialize users")
	}
	if err := m.documentStorage.Put(document); err != nil {
		return util.StatusWrap(err, "Failed to save users")
	}
	return nil
}
