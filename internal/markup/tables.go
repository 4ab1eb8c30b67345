package markup

import "github.com/dmaclachlan/appgraph/internal/graph"

// placeholderTag is the child element controls keep their settings in,
// as Name/Value pairs.
const placeholderTag = "Placeholder"

// placeholderTopics maps placeholder names to descriptor keys. Names
// not listed here are control-local settings with no graph relevance.
var placeholderTopics = map[string]string{
	"Text":              "name",
	"Description":       "description",
	"PagePK":            "template",
	"Page":              "template_name",
	"Workflow":          "formflow",
	"Image":             "image",
	"CommandRule":       "command",
	"BackgroundImagePk": "image",
	"Url":               "url",
}

// Rule fixes the descriptor shape for one element tag.
type Rule struct {
	// Topics maps raw attribute names to descriptor keys.
	Topics map[string]string

	// Placeholders folds the element's Placeholder children into the
	// descriptor through placeholderTopics.
	Placeholders bool

	// Link is stamped on every descriptor this rule produces.
	Link graph.LinkType

	// NullRef names a descriptor key whose null-sentinel value
	// suppresses the whole descriptor instead of producing a dangling
	// reference.
	NullRef string
}

// Table is the closed tag-to-rule mapping for one document family.
type Table map[string]Rule

// conditionActivity covers the workflow activities that branch on a
// condition. All three shapes reference the condition the same way.
var conditionActivity = Rule{
	Topics: map[string]string{
		"ResKey":            "guid",
		"DisplayName":       "name",
		"SelectedCondition": "condition",
	},
	Link:    graph.LinkConditionalTask,
	NullRef: "condition",
}

// FormTable describes template form layout markup: the form element
// itself plus its controls.
var FormTable = Table{
	"form": {
		Topics: map[string]string{
			"Text":              "name",
			"BackgroundImagePk": "image",
		},
	},
	"control": {
		Placeholders: true,
	},
}

// WorkflowTable describes formflow task graph markup.
var WorkflowTable = Table{
	"ConditionalIfActivity":    conditionActivity,
	"ConditionalWhileActivity": conditionActivity,
	"TransitionActivity":       conditionActivity,
	"ShowFormActivity": {
		Topics: map[string]string{
			"ResKey":      "guid",
			"DisplayName": "name",
			"FormId":      "template",
		},
		Link: graph.LinkShowForm,
	},
	"JumpActivity": {
		Topics: map[string]string{
			"ResKey":      "guid",
			"DisplayName": "name",
			"WorkflowId":  "formflow",
		},
		Link: graph.LinkJumpToFormflow,
	},
	"RunCommandActivity": {
		Topics: map[string]string{
			"ResKey":      "guid",
			"DisplayName": "name",
			"CommandRule": "command",
		},
		Link: graph.LinkRunCommand,
	},
	"PlaySoundActivity": {
		Topics: map[string]string{
			"ResKey":      "guid",
			"DisplayName": "name",
			"SoundId":     "sound",
		},
		Link: graph.LinkPlaySound,
	},
}

// DependencyTable describes template dependency manifests.
var DependencyTable = Table{
	"form": {
		Topics: map[string]string{
			"templateID": "template",
			"path":       "property",
		},
		Link: graph.LinkFormDependency,
	},
	"workflow": {
		Topics: map[string]string{
			"workflowID": "formflow",
		},
		Link: graph.LinkFlowDependency,
	},
	"calculatedProperty": {
		Topics: map[string]string{
			"path": "property",
		},
		Link: graph.LinkPropDependency,
	},
}

// ExpressionTable describes condition expression markup.
var ExpressionTable = Table{
	"simpleConditionExpression": {
		Topics: map[string]string{
			"propertypath": "property",
			"path":         "property",
		},
		Link: graph.LinkPropDependency,
	},
}
