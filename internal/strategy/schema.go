package strategy

// rosterSchema 约束 strategies.yaml 的结构。加载时先过 schema，
// 再做 Go 侧的数值范围校验（validate）。
const rosterSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["strategies"],
  "properties": {
    "strategies": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "is_live": {"type": "boolean"},
          "consensus_threshold": {"type": "number", "minimum": 0, "maximum": 1},
          "min_confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "min_individual_confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "min_agents": {"type": "integer", "minimum": 0},
          "adaptive_weighting": {"type": "boolean"},
          "regime_adjust": {"type": "boolean"},
          "veto_enabled": {"type": "boolean"},
          "agent_weights": {
            "type": "object",
            "additionalProperties": {"type": "number", "minimum": 0}
          },
          "initial_balance": {"type": "number", "exclusiveMinimum": 0},
          "trade_size_usd": {"type": "number", "exclusiveMinimum": 0},
          "max_position_pct": {"type": "number", "minimum": 0, "maximum": 1},
          "max_open_positions": {"type": "integer", "minimum": 0}
        },
        "additionalProperties": false
      }
    }
  }
}`
