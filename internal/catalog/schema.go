package catalog

// collegeSchema describes one college document of a catalog dump. Cutoff
// values are not constrained: malformed values resolve to absent at read time.
const collegeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["code", "name", "location", "type", "autonomyStatus", "branches"],
  "properties": {
    "code": {"type": "string", "minLength": 1, "pattern": "\\S"},
    "name": {"type": "string", "minLength": 1},
    "location": {
      "type": "object",
      "required": ["city", "district", "state"],
      "properties": {
        "city": {"type": "string"},
        "district": {"type": "string"},
        "state": {"type": "string"}
      }
    },
    "type": {"enum": ["Government", "Private", "Government Aided", "Non-Autonomous"]},
    "autonomyStatus": {"enum": ["Autonomous", "Non-Autonomous"]},
    "branches": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["branchName"],
        "properties": {
          "branchName": {"type": "string"},
          "cutoffs": {"type": ["object", "null"]}
        }
      }
    }
  }
}`
