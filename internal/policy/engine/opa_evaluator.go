package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"repairdesk/backend/internal/policy/repository"
)

const decisionQuery = "data.repairdesk.device_change"

// Default Rego policy: a platform change always needs re-authentication, an address change only for
// privileged roles (a shop laptop moving between branch networks is normal for technicians).
const defaultRegoPolicy = `package repairdesk.device_change

default reauth_required := false

default reason := ""

platform_changed if "platform" in input.changed

privileged if input.principal.role in {"admin", "owner"}

reauth_required if platform_changed

reauth_required if {
	"address" in input.changed
	privileged
}

reason := "platform_changed" if platform_changed

reason := "privileged_address_changed" if {
	not platform_changed
	"address" in input.changed
	privileged
}
`

// DefaultPolicy returns the built-in Rego module, for seeding a stored copy operators can edit.
func DefaultPolicy() string { return defaultRegoPolicy }

// OPAEvaluator evaluates device change policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
	logger     *zap.Logger
}

// NewOPAEvaluator returns an OPA-based policy evaluator. policyRepo may be nil, in which case only the
// built-in policy is used.
func NewOPAEvaluator(policyRepo repository.Repository, logger *zap.Logger) *OPAEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OPAEvaluator{policyRepo: policyRepo, logger: logger}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not call the policy repo or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.evaluatePolicies(ctx, []string{defaultRegoPolicy}, buildInput(DeviceChange{}))
	return err
}

// EvaluateDeviceChange evaluates the enabled stored policies, or the built-in policy when none are
// enabled. A stored policy that fails to load, compile or evaluate falls back to the built-in one.
func (e *OPAEvaluator) EvaluateDeviceChange(ctx context.Context, change DeviceChange) (Decision, error) {
	input := buildInput(change)

	var policies []string
	if e.policyRepo != nil {
		enabled, err := e.policyRepo.ListEnabled(ctx)
		if err != nil {
			e.logger.Warn("policy: failed to load policies", zap.Error(err))
		} else {
			for _, p := range enabled {
				if p.Enabled && p.Rules != "" {
					policies = append(policies, p.Rules)
				}
			}
		}
	}

	if len(policies) > 0 {
		d, err := e.evaluatePolicies(ctx, policies, input)
		if err == nil {
			return d, nil
		}
		e.logger.Warn("policy: stored policy evaluation failed, using built-in", zap.Error(err))
	}
	return e.evaluatePolicies(ctx, []string{defaultRegoPolicy}, input)
}

func buildInput(change DeviceChange) map[string]interface{} {
	changed := make([]interface{}, 0, len(change.Changed))
	for _, c := range change.Changed {
		changed = append(changed, c)
	}
	permissions := make([]interface{}, 0, len(change.Principal.Permissions))
	for _, p := range change.Principal.Permissions {
		permissions = append(permissions, p)
	}
	return map[string]interface{}{
		"principal": map[string]interface{}{
			"id":          change.Principal.ID,
			"role":        string(change.Principal.Role),
			"permissions": permissions,
		},
		"stored": map[string]interface{}{
			"platform":   change.Stored.Platform,
			"user_agent": change.Stored.UserAgent,
			"address":    change.Stored.Address,
		},
		"current": map[string]interface{}{
			"platform":   change.Current.Platform,
			"user_agent": change.Current.UserAgent,
			"address":    change.Current.Address,
		},
		"changed": changed,
	}
}

func (e *OPAEvaluator) evaluatePolicies(ctx context.Context, policies []string, input map[string]interface{}) (Decision, error) {
	modules := make(map[string]string, len(policies))
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}

	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return Decision{}, fmt.Errorf("compile policies: %w", err)
	}

	rs, err := rego.New(
		rego.Query(decisionQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	).Eval(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("eval policies: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, fmt.Errorf("policy query returned no result")
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("policy query returned %T, want object", rs[0].Expressions[0].Value)
	}

	var out Decision
	if v, ok := doc["reauth_required"].(bool); ok {
		out.ReauthRequired = v
	}
	if v, ok := doc["reason"].(string); ok {
		out.Reason = v
	}
	return out, nil
}
