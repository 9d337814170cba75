package role

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

var Module = fx.Module("role.catalog",
	fx.Provide(NewCatalogFromDB),
)

// defaultGrants is the seeded capability table.
var defaultGrants = map[Role][]Capability{
	Admin:  {ReadMembers, WriteMembers, WriteOrganization, WriteProject},
	Member: {ReadMembers},
}

// Catalog maps a role to its capability set. It is built once at startup and
// read-only afterwards.
type Catalog struct {
	grants map[Role][]Capability
	index  map[Role]map[Capability]struct{}
}

// NewCatalogFromDB seeds the catalog into the casbin_rule table and loads it.
func NewCatalogFromDB(db *gorm.DB, log *zap.Logger) (*Catalog, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("role catalog adapter: %w", err)
	}
	catalog, err := NewCatalog(adapter)
	if err != nil {
		return nil, err
	}
	if log != nil {
		log.Named("role.catalog").Info("role catalog loaded", zap.Int("roles", len(catalog.grants)))
	}
	return catalog, nil
}

// NewCatalog builds the catalog on top of a casbin policy store. A nil adapter
// keeps the policy in memory.
func NewCatalog(adapter persist.Adapter) (*Catalog, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	}
	if err != nil {
		return nil, err
	}
	if adapter != nil {
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}

	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}

	catalog := &Catalog{
		grants: make(map[Role][]Capability, len(defaultGrants)),
		index:  make(map[Role]map[Capability]struct{}, len(defaultGrants)),
	}
	for _, r := range Roles() {
		rules, err := enforcer.GetFilteredPolicy(0, subject(r))
		if err != nil {
			return nil, err
		}
		caps := make([]Capability, 0, len(rules))
		set := make(map[Capability]struct{}, len(rules))
		for _, rule := range rules {
			if len(rule) < 2 {
				continue
			}
			c := Capability(strings.TrimSpace(rule[1]))
			if _, dup := set[c]; dup {
				continue
			}
			set[c] = struct{}{}
			caps = append(caps, c)
		}
		catalog.grants[r] = caps
		catalog.index[r] = set
	}
	return catalog, nil
}

// CapabilitiesOf returns the capability set of r. Unknown roles grant nothing.
func (c *Catalog) CapabilitiesOf(r Role) []Capability {
	if c == nil {
		return nil
	}
	caps := c.grants[r]
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// Allows reports whether r grants capability.
func (c *Catalog) Allows(r Role, capability Capability) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[r][capability]
	return ok
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for _, r := range Roles() {
		for _, capability := range defaultGrants[r] {
			if _, err := enforcer.AddPolicy(subject(r), string(capability)); err != nil {
				return err
			}
		}
	}
	return nil
}

func subject(r Role) string {
	return "role:" + strings.ToLower(string(r))
}
