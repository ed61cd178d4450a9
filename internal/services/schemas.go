package services

import "github.com/xeipuuv/gojsonschema"

// JSON schemas applied to AI responses at the generation boundary.
// Anything that fails validation is treated as a failed attempt and retried.

const assessmentQuestionsSchemaJSON = `{
	"type": "object",
	"required": ["questions"],
	"properties": {
		"questions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "question", "options", "correct_answer", "explanation", "level", "level_id"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"question": {"type": "string", "minLength": 1},
					"options": {
						"type": "array",
						"items": {"type": "string"},
						"minItems": 4,
						"maxItems": 4
					},
					"correct_answer": {"type": "integer", "minimum": 0, "maximum": 3},
					"explanation": {"type": "string"},
					"level": {"type": "string"},
					"level_id": {"type": "integer"}
				}
			}
		}
	}
}`

const quizQuestionsSchemaJSON = `{
	"type": "object",
	"required": ["questions"],
	"properties": {
		"questions": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["question", "options", "correct_answer", "explanation"],
				"properties": {
					"question": {"type": "string", "minLength": 1},
					"options": {
						"type": "array",
						"items": {"type": "string"},
						"minItems": 4,
						"maxItems": 4
					},
					"correct_answer": {"type": "integer", "minimum": 0, "maximum": 3},
					"explanation": {"type": "string"}
				}
			}
		}
	}
}`

const topicRelevanceSchemaJSON = `{
	"type": "object",
	"required": ["is_relevant"],
	"properties": {
		"is_relevant": {"type": "boolean"},
		"reason": {"type": "string"},
		"suggested_topic": {"type": "string"}
	}
}`

const lessonPlanSchemaJSON = `{
	"type": "object",
	"required": ["lessons"],
	"properties": {
		"lessons": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["title", "outline"],
				"properties": {
					"title": {"type": "string", "minLength": 1},
					"outline": {"type": "string"}
				}
			}
		}
	}
}`

const lessonContentSchemaJSON = `{
	"type": "object",
	"required": ["content"],
	"properties": {
		"content": {"type": "string", "minLength": 1}
	}
}`

const deeperExplanationSchemaJSON = `{
	"type": "object",
	"required": ["explanation"],
	"properties": {
		"explanation": {"type": "string", "minLength": 1}
	}
}`

var (
	assessmentQuestionsSchema = mustCompileSchema(assessmentQuestionsSchemaJSON)
	quizQuestionsSchema       = mustCompileSchema(quizQuestionsSchemaJSON)
	topicRelevanceSchema      = mustCompileSchema(topicRelevanceSchemaJSON)
	lessonPlanSchema          = mustCompileSchema(lessonPlanSchemaJSON)
	lessonContentSchema       = mustCompileSchema(lessonContentSchemaJSON)
	deeperExplanationSchema   = mustCompileSchema(deeperExplanationSchemaJSON)
)

func mustCompileSchema(schemaJSON string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(err)
	}
	return schema
}
