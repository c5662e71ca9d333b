// Package proto holds the small set of wire-stable enum types shared
// between the agent runtime and any out-of-process edge/control-plane
// component that needs to agree on tool risk classification without
// importing the tool package itself.
package proto

// RiskLevel classifies how destructive a tool's default action is. It
// mirrors ToolSchema.risk_level from the tool contract and is kept as its
// own integer-backed type (rather than a plain string) so approval policy
// can use it as a comparable map key and order it numerically.
type RiskLevel int32

const (
	RiskLevel_RISK_LEVEL_UNSPECIFIED RiskLevel = 0
	RiskLevel_RISK_LEVEL_LOW         RiskLevel = 1
	RiskLevel_RISK_LEVEL_MEDIUM      RiskLevel = 2
	RiskLevel_RISK_LEVEL_HIGH        RiskLevel = 3
	RiskLevel_RISK_LEVEL_CRITICAL    RiskLevel = 4
)

var riskLevelName = map[RiskLevel]string{
	RiskLevel_RISK_LEVEL_UNSPECIFIED: "RISK_LEVEL_UNSPECIFIED",
	RiskLevel_RISK_LEVEL_LOW:         "RISK_LEVEL_LOW",
	RiskLevel_RISK_LEVEL_MEDIUM:      "RISK_LEVEL_MEDIUM",
	RiskLevel_RISK_LEVEL_HIGH:        "RISK_LEVEL_HIGH",
	RiskLevel_RISK_LEVEL_CRITICAL:    "RISK_LEVEL_CRITICAL",
}

func (r RiskLevel) String() string {
	if name, ok := riskLevelName[r]; ok {
		return name
	}
	return "RISK_LEVEL_UNSPECIFIED"
}
