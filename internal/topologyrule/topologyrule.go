// Package topologyrule implements the Topology Rule Evaluator (L3): a
// user-supplied expression, in one of two grammars, that overrides a
// node's detected topology block.
package topologyrule

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/railtopo/railtopo/internal/models"
)

const regexPrefix = "regex:"

// Evaluate runs a user-supplied topology rule against one node. Rules
// prefixed "regex:" are evaluated as a plain regular expression against
// node_name; anything else compiles and runs as a CEL expression with
// node_name/node_labels bound and a custom extract() function available.
// A compile or evaluation failure returns ok=false and an error describing
// it; the caller is responsible for recording that as the node's
// topology_rule_error and treating the block as absent, never panicking.
func Evaluate(nodeName string, nodeLabels map[string]string, rule string) (block string, ok bool, err error) {
	if strings.HasPrefix(rule, regexPrefix) {
		return evaluateRegex(nodeName, strings.TrimPrefix(rule, regexPrefix))
	}
	return evaluateCEL(nodeName, nodeLabels, rule)
}

// Detection builds the TopologyDetection tag for a successfully evaluated
// custom rule.
func Detection(rule string) *models.TopologyDetection {
	return &models.TopologyDetection{
		Type:            models.TopologyCustom,
		DetectionMethod: fmt.Sprintf("Custom rule: %s", rule),
		Confidence:      models.ConfidenceHigh,
	}
}

func evaluateRegex(input, pattern string) (string, bool, error) {
	result, err := extractRegex(input, pattern)
	if err != nil {
		return "", false, err
	}
	if result == "" {
		return "", false, nil
	}
	return result, true, nil
}

// extractRegex is the host function shared by the regex: grammar and the
// CEL extract() builtin: it returns capture group 1 if the pattern has one,
// else the full match, else an empty string.
func extractRegex(input, pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	match := re.FindStringSubmatch(input)
	if match == nil {
		return "", nil
	}
	if len(match) > 1 {
		return match[1], nil
	}
	return match[0], nil
}

var celEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable("node_name", cel.StringType),
		cel.Variable("node_labels", cel.MapType(cel.StringType, cel.StringType)),
		cel.Function("extract",
			cel.Overload("extract_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.StringType,
				cel.BinaryBinding(extractBinding),
			),
		),
	)
	if err != nil {
		panic(fmt.Sprintf("topologyrule: failed to build CEL environment: %v", err))
	}
	celEnv = env
}

func evaluateCEL(nodeName string, nodeLabels map[string]string, rule string) (string, bool, error) {
	ast, iss := celEnv.Compile(rule)
	if iss != nil && iss.Err() != nil {
		return "", false, fmt.Errorf("compile CEL topology rule: %w", iss.Err())
	}

	program, err := celEnv.Program(ast)
	if err != nil {
		return "", false, fmt.Errorf("build CEL program: %w", err)
	}

	labels := nodeLabels
	if labels == nil {
		labels = map[string]string{}
	}

	out, _, err := program.Eval(map[string]interface{}{
		"node_name":   nodeName,
		"node_labels": labels,
	})
	if err != nil {
		return "", false, fmt.Errorf("evaluate CEL topology rule: %w", err)
	}

	return coerceResult(out)
}

// extractBinding is the CEL-facing wrapper around extractRegex: an invalid
// pattern raises a CEL error rather than panicking.
func extractBinding(lhs, rhs ref.Val) ref.Val {
	input, ok := lhs.Value().(string)
	if !ok {
		return types.NewErr("extract: input must be a string")
	}
	pattern, ok := rhs.Value().(string)
	if !ok {
		return types.NewErr("extract: pattern must be a string")
	}
	result, err := extractRegex(input, pattern)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	return types.String(result)
}

// coerceResult converts a CEL evaluation result to the topology-rule
// string contract: string/int/uint results stringify; an empty string or
// null result means "no block" without being an error.
func coerceResult(out ref.Val) (string, bool, error) {
	switch v := out.Value().(type) {
	case string:
		if v == "" {
			return "", false, nil
		}
		return v, true, nil
	case int64:
		return fmt.Sprintf("%d", v), true, nil
	case uint64:
		return fmt.Sprintf("%d", v), true, nil
	case nil:
		return "", false, nil
	default:
		return fmt.Sprintf("%v", v), true, nil
	}
}
