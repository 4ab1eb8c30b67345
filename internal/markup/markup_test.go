package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmaclachlan/appgraph/internal/graph"
)

const formDoc = `<form xmlns="http://schemas.example.com/forms" Text="Incident Dashboard" BackgroundImagePk="75152bfd-3af6-4e10-b636-ed5f5218e8ec">
  <control Type="TIL">
    <Placeholder Name="Text" Value="New Incident" />
    <Placeholder Name="Description" Value="New Incident Form" />
    <Placeholder Name="Image" Value="74a27a16-4dc1-45d4-b5a8-916b1376be68" />
    <Placeholder Name="Workflow" Value="ba5e37ac-b967-41e7-99de-016ddb2d1bc8" />
  </control>
  <control Type="TIL">
    <Placeholder Name="Text" Value="Jump Board" />
    <Placeholder Name="Workflow" Value="956e1bf6-27d4-4eef-8503-7e988a1a50c3" />
    <Placeholder Name="Workflow" Value="0ead7e81-44d6-44e0-8957-3ed80c114383" />
    <Placeholder Name="Url" Value="" />
  </control>
  <control Type="SIM">
    <Placeholder Name="Image" Value="02b88b26-d37c-4848-8d54-5e33846d37e4" />
  </control>
  <control Type="LST" Entity="Incident" columns="&lt;columns&gt;&lt;column FieldName=&quot;INC_Status&quot; PropertyPath=&quot;INC_Status&quot;/&gt;&lt;column FieldName=&quot;INC_Owner&quot; PropertyPath=&quot;INC_OwnerName&quot;/&gt;&lt;/columns&gt;" />
  <control Type="LST" sortfields="&lt;sortfields&gt;&lt;field FieldName=&quot;INC_Raised&quot;/&gt;&lt;/sortfields&gt;" />
</form>`

const workflowDoc = `<Workflow xmlns="http://schemas.example.com/workflows">
  <ConditionalIfActivity ResKey="foo-bar-baz" DisplayName="Check Status" SelectedCondition="my awesome condition" />
  <ConditionalIfActivity ResKey="dead-branch" DisplayName="Dead Branch" SelectedCondition="00000000-0000-0000-0000-000000000000" />
  <ShowFormActivity ResKey="show-1" DisplayName="Show Detail" FormId="e71c3d72-5976-45b9-af6f-5ccf7a227af6" />
  <JumpActivity ResKey="jump-1" WorkflowId="184b7395-c460-4655-89e2-fe61eb1a33e7" />
  <RunCommandActivity ResKey="run-1" CommandRule="Approve" />
  <PlaySoundActivity ResKey="play-1" SoundId="39c1b2a0-0000-4000-8000-000000000009" />
</Workflow>`

const dependencyDoc = `<dependencies>
  <form templateID="e71c3d72-5976-45b9-af6f-5ccf7a227af6" path="INC_Status" />
  <form templateID="e71c3d72-5976-45b9-af6f-5ccf7a227af6" path="INC_Owner" />
  <form templateID="5e7b738d-21ab-428e-a10b-db44dda7f35a" />
  <workflow workflowID="184b7395-c460-4655-89e2-fe61eb1a33e7" />
  <calculatedProperty path="INC_Total" />
</dependencies>`

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("Malformed", func(t *testing.T) {
		t.Parallel()
		_, err := Parse("<form><control></form>", FormTable)
		assert.Error(t, err)
	})

	t.Run("NoRoot", func(t *testing.T) {
		t.Parallel()
		_, err := Parse("   ", FormTable)
		assert.Error(t, err)
	})

	t.Run("MultipleRoots", func(t *testing.T) {
		t.Parallel()
		_, err := Parse("<form/><form/>", FormTable)
		assert.Error(t, err)
	})
}

func TestDoc_Find(t *testing.T) {
	t.Parallel()

	t.Run("TileControls", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse(formDoc, FormTable)
		require.NoError(t, err)

		tiles := doc.Find("control", "TIL")
		require.Len(t, tiles, 2)

		name, ok := tiles[0].Get("name")
		require.True(t, ok)
		assert.Equal(t, "New Incident", name)
		desc, ok := tiles[0].Get("description")
		require.True(t, ok)
		assert.Equal(t, "New Incident Form", desc)
		assert.Equal(t, []string{"74a27a16-4dc1-45d4-b5a8-916b1376be68"}, tiles[0].All("image"))
	})

	t.Run("RepeatedTopicAccumulates", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse(formDoc, FormTable)
		require.NoError(t, err)

		var formflows []string
		for _, d := range doc.Find("control") {
			formflows = append(formflows, d.All("formflow")...)
		}

		assert.Equal(t, []string{
			"ba5e37ac-b967-41e7-99de-016ddb2d1bc8",
			"956e1bf6-27d4-4eef-8503-7e988a1a50c3",
			"0ead7e81-44d6-44e0-8957-3ed80c114383",
		}, formflows)
	})

	t.Run("StaticImage", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse(formDoc, FormTable)
		require.NoError(t, err)

		statics := doc.Find("control", "SIM")
		require.Len(t, statics, 1)
		assert.Equal(t, []string{"02b88b26-d37c-4848-8d54-5e33846d37e4"}, statics[0].All("image"))
	})

	t.Run("BackgroundImage", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse(formDoc, FormTable)
		require.NoError(t, err)

		forms := doc.Find("form")
		require.Len(t, forms, 1)
		image, ok := forms[0].Get("image")
		require.True(t, ok)
		assert.Equal(t, "75152bfd-3af6-4e10-b636-ed5f5218e8ec", image)
	})

	t.Run("EmptyPlaceholderUnset", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse(formDoc, FormTable)
		require.NoError(t, err)

		tiles := doc.Find("control", "TIL")
		require.Len(t, tiles, 2)
		_, ok := tiles[1].Get("url")
		assert.False(t, ok)
	})

	t.Run("ConditionalActivity", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse(workflowDoc, WorkflowTable)
		require.NoError(t, err)

		conds := doc.Find("ConditionalIfActivity")
		require.Len(t, conds, 1, "null-sentinel reference should be suppressed")
		assert.Equal(t, graph.LinkConditionalTask, conds[0].Link)
		assert.Equal(t, map[string]string{
			"guid":      "foo-bar-baz",
			"name":      "Check Status",
			"condition": "my awesome condition",
		}, conds[0].Attrs())
	})

	t.Run("WorkflowReferences", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse(workflowDoc, WorkflowTable)
		require.NoError(t, err)

		tests := []struct {
			tag  string
			key  string
			want string
			link graph.LinkType
		}{
			{"ShowFormActivity", "template", "e71c3d72-5976-45b9-af6f-5ccf7a227af6", graph.LinkShowForm},
			{"JumpActivity", "formflow", "184b7395-c460-4655-89e2-fe61eb1a33e7", graph.LinkJumpToFormflow},
			{"RunCommandActivity", "command", "Approve", graph.LinkRunCommand},
			{"PlaySoundActivity", "sound", "39c1b2a0-0000-4000-8000-000000000009", graph.LinkPlaySound},
		}
		for _, tt := range tests {
			found := doc.Find(tt.tag)
			require.Len(t, found, 1, tt.tag)
			value, ok := found[0].Get(tt.key)
			require.True(t, ok, tt.tag)
			assert.Equal(t, tt.want, value, tt.tag)
			assert.Equal(t, tt.link, found[0].Link, tt.tag)
		}
	})

	t.Run("UntabledTag", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse(workflowDoc, WorkflowTable)
		require.NoError(t, err)
		assert.Empty(t, doc.Find("Placeholder"))
	})
}

func TestDoc_ByAttr(t *testing.T) {
	t.Parallel()

	doc, err := Parse(dependencyDoc, DependencyTable)
	require.NoError(t, err)

	t.Run("FormDependencies", func(t *testing.T) {
		t.Parallel()

		deps := doc.ByAttr("templateID")
		require.Len(t, deps, 2)

		merged := deps["e71c3d72-5976-45b9-af6f-5ccf7a227af6"]
		assert.Equal(t, graph.LinkFormDependency, merged.Link)
		assert.Equal(t, []string{"INC_Status", "INC_Owner"}, merged.All("property"))

		_, ok := deps["5e7b738d-21ab-428e-a10b-db44dda7f35a"]
		assert.True(t, ok)
	})

	t.Run("WorkflowDependencies", func(t *testing.T) {
		t.Parallel()

		deps := doc.ByAttr("workflowID")
		require.Len(t, deps, 1)
		flow, ok := deps["184b7395-c460-4655-89e2-fe61eb1a33e7"].Get("formflow")
		require.True(t, ok)
		assert.Equal(t, "184b7395-c460-4655-89e2-fe61eb1a33e7", flow)
	})
}

func TestDoc_FindNested(t *testing.T) {
	t.Parallel()

	t.Run("EntityScopedColumns", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse(formDoc, FormTable)
		require.NoError(t, err)

		refs, err := doc.FindNested("columns", "PropertyPath")
		require.NoError(t, err)
		assert.Equal(t, []ListRef{
			{Scope: "Incident", Value: "INC_Status"},
			{Scope: "Incident", Value: "INC_OwnerName"},
		}, refs)
	})

	t.Run("GlobalSortFields", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse(formDoc, FormTable)
		require.NoError(t, err)

		refs, err := doc.FindNested("sortfields", "FieldName")
		require.NoError(t, err)
		assert.Equal(t, []ListRef{{Scope: ScopeGlobal, Value: "INC_Raised"}}, refs)
	})

	t.Run("MalformedNestedMarkup", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse(`<form><control filters="&lt;broken"/></form>`, FormTable)
		require.NoError(t, err)

		_, err = doc.FindNested("filters", "PropertyPath")
		assert.Error(t, err)
	})
}

func TestDescriptor_Merge(t *testing.T) {
	t.Parallel()

	a := Descriptor{}
	a.add("property", "INC_Status")
	b := Descriptor{}
	b.add("property", "INC_Status")
	b.add("property", "INC_Owner")
	b.add("template", "t-1")

	a.merge(b)

	assert.Equal(t, []string{"INC_Status", "INC_Owner"}, a.All("property"))
	assert.Equal(t, []string{"t-1"}, a.All("template"))
}
