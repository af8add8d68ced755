// Package pool holds the identities and voting power of every agent taking
// part in a load-test run: stake pool operators, constitutional committee
// members and delegated representatives.
//
// A pool is built once per run and is read-only afterwards, so it is safe
// to share across concurrently running scenarios. Agents are never
// reallocated mid-scenario; key material is generated at construction and
// amortized over the whole run.
package pool

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/roach88/enactor/internal/gov"
)

// Agent is one voting identity. Immutable after pool construction.
type Agent struct {
	ID     string
	Role   gov.Role
	Key    string // opaque voting credential handle
	Weight uint64
	// Authorized is the committee hot-credential status. A resigned or
	// never-authorized committee member does not count toward quorum.
	// Always true for SPOs and DReps.
	Authorized bool
}

// Config describes the pool composition.
type Config struct {
	SPOs      int
	Committee int
	DReps     int

	// Per-role uniform voting power. Zero means weight 1.
	SPOWeight  uint64
	CCWeight   uint64
	DRepWeight uint64
}

// DefaultConfig is the composition used by the canonical load-test run:
// 3 stake pool operators, 90 committee members, 100 DReps.
func DefaultConfig() Config {
	return Config{SPOs: 3, Committee: 90, DReps: 100}
}

// Pool is the fixed set of agents for one run.
type Pool struct {
	byRole map[gov.Role][]Agent
	byID   map[string]Agent
}

// New builds a pool from the given composition.
//
// Construction fails fast on a composition no scenario could run with:
// negative counts or an entirely empty pool.
func New(cfg Config) (*Pool, error) {
	if cfg.SPOs < 0 || cfg.Committee < 0 || cfg.DReps < 0 {
		return nil, fmt.Errorf("pool: negative agent count (spos=%d cc=%d dreps=%d)", cfg.SPOs, cfg.Committee, cfg.DReps)
	}
	if cfg.SPOs+cfg.Committee+cfg.DReps == 0 {
		return nil, fmt.Errorf("pool: no agents configured")
	}

	p := &Pool{
		byRole: make(map[gov.Role][]Agent),
		byID:   make(map[string]Agent),
	}
	p.populate(gov.RoleSPO, "spo", cfg.SPOs, weightOr1(cfg.SPOWeight))
	p.populate(gov.RoleCommittee, "cc", cfg.Committee, weightOr1(cfg.CCWeight))
	p.populate(gov.RoleDRep, "drep", cfg.DReps, weightOr1(cfg.DRepWeight))
	return p, nil
}

func weightOr1(w uint64) uint64 {
	if w == 0 {
		return 1
	}
	return w
}

func (p *Pool) populate(role gov.Role, prefix string, count int, weight uint64) {
	for i := 1; i <= count; i++ {
		id := fmt.Sprintf("%s-%03d", prefix, i)
		a := Agent{
			ID:         id,
			Role:       role,
			Key:        deriveKey(id),
			Weight:     weight,
			Authorized: true,
		}
		p.byRole[role] = append(p.byRole[role], a)
		p.byID[id] = a
	}
}

// deriveKey produces a deterministic opaque credential handle for an agent.
// Real key generation lives behind the node boundary; the harness only
// needs a stable handle to sign submissions with.
func deriveKey(id string) string {
	sum := sha256.Sum256([]byte("enactor/agent-key/v1\x00" + id))
	return hex.EncodeToString(sum[:])
}

// Allocate returns a fixed, reusable set of count agents of the given role.
// The same prefix of the role's agent list is returned on every call, so
// repeated scenarios reuse identical identities.
func (p *Pool) Allocate(role gov.Role, count int) ([]Agent, error) {
	agents := p.byRole[role]
	if count < 0 {
		return nil, fmt.Errorf("pool: negative allocation for role %s", role)
	}
	if count > len(agents) {
		return nil, fmt.Errorf("pool: role %s has %d agents, %d requested", role, len(agents), count)
	}
	out := make([]Agent, count)
	copy(out, agents[:count])
	return out, nil
}

// Agents returns all agents of a role.
func (p *Pool) Agents(role gov.Role) []Agent {
	out := make([]Agent, len(p.byRole[role]))
	copy(out, p.byRole[role])
	return out
}

// Agent returns one agent by id.
func (p *Pool) Agent(agentID string) (Agent, error) {
	a, ok := p.byID[agentID]
	if !ok {
		return Agent{}, fmt.Errorf("pool: unknown agent %q", agentID)
	}
	return a, nil
}

// WeightOf returns the live voting power of an agent. A resigned committee
// member has weight zero: its votes are void on chain.
func (p *Pool) WeightOf(agentID string) (uint64, error) {
	a, ok := p.byID[agentID]
	if !ok {
		return 0, fmt.Errorf("pool: unknown agent %q", agentID)
	}
	if !a.Authorized {
		return 0, nil
	}
	return a.Weight, nil
}

// RoleOf returns the voter class of an agent.
func (p *Pool) RoleOf(agentID string) (gov.Role, error) {
	a, ok := p.byID[agentID]
	if !ok {
		return "", fmt.Errorf("pool: unknown agent %q", agentID)
	}
	return a.Role, nil
}

// ClassWeight returns the summed voting power of all authorized agents of a
// role. This is the denominator base for that class's threshold check.
func (p *Pool) ClassWeight(role gov.Role) uint64 {
	var total uint64
	for _, a := range p.byRole[role] {
		if a.Authorized {
			total += a.Weight
		}
	}
	return total
}

// Resign withdraws a committee member's hot credential. Must only be called
// between scenario runs; the ledger counts resigned members neither toward
// quorum nor as "no" votes.
func (p *Pool) Resign(agentID string) error {
	a, ok := p.byID[agentID]
	if !ok {
		return fmt.Errorf("pool: unknown agent %q", agentID)
	}
	if a.Role != gov.RoleCommittee {
		return fmt.Errorf("pool: agent %q is not a committee member", agentID)
	}
	a.Authorized = false
	p.byID[agentID] = a
	for i, member := range p.byRole[gov.RoleCommittee] {
		if member.ID == agentID {
			p.byRole[gov.RoleCommittee][i] = a
		}
	}
	return nil
}

// Validate checks that the pool can satisfy a threshold rule: every class
// the rule requires must have live voting power. Committee-quorum scenarios
// need a non-empty, authorized committee.
func (p *Pool) Validate(rule gov.ThresholdRule) error {
	var missing []string
	for _, role := range gov.Roles {
		if rule.Requires(role) && p.ClassWeight(role) == 0 {
			missing = append(missing, string(role))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("pool: action kind %s requires voter classes with no live members: %v", rule.Kind, missing)
	}
	return nil
}
