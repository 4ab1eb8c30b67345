package ingestion

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/dmaclachlan/appgraph/internal/config"
	"github.com/dmaclachlan/appgraph/internal/graph"
	"github.com/dmaclachlan/appgraph/internal/markup"
	"github.com/dmaclachlan/appgraph/internal/records"
)

// ruleLinks classifies entity rules by their discriminator code.
var ruleLinks = map[string]graph.LinkType{
	"CMD": graph.LinkCommand,
	"PRP": graph.LinkCalculated,
	"PRO": graph.LinkDefaulting,
	"VAL": graph.LinkValidation,
	"LOO": graph.LinkLookup,
}

// taskLinks classifies structured workflow steps, keyed by the step
// discriminator, with the attribute holding each step's target.
var taskLinks = map[string]struct {
	ref  string
	link graph.LinkType
}{
	"FRM": {ref: "template", link: graph.LinkShowForm},
	"JMP": {ref: "formflow", link: graph.LinkJumpToFormflow},
	"RUN": {ref: "command", link: graph.LinkRunCommand},
}

// workflowActivityRefs lists the activity tags extracted from workflow
// markup, in processing order, with the descriptor key naming each
// activity's target.
var workflowActivityRefs = []struct {
	tag string
	key string
}{
	{"ConditionalIfActivity", "condition"},
	{"ConditionalWhileActivity", "condition"},
	{"TransitionActivity", "condition"},
	{"ShowFormActivity", "template"},
	{"JumpActivity", "formflow"},
	{"RunCommandActivity", "command"},
	{"PlaySoundActivity", "sound"},
}

// listContainers maps each list-control container field to the nested
// attribute its references live in.
var listContainers = []struct {
	field  string
	target string
}{
	{"columns", "FieldName"},
	{"filters", "PropertyPath"},
	{"sortfields", "FieldName"},
}

// builder assembles one graph. It owns the resolver state for the
// build; nothing outlives the build except the finished graph.
type builder struct {
	g        *graph.Graph
	settings *config.Settings
	resolver *Resolver
}

func newBuilder(settings *config.Settings) *builder {
	return &builder{
		g:        graph.New(),
		settings: settings,
		resolver: NewResolver(),
	}
}

// registerNames fills the display-name lookup tables before any edges
// bind, so references by name resolve regardless of the order records
// are processed in.
func (b *builder) registerNames(kinds ...[]*records.Record) {
	for _, recs := range kinds {
		for _, rec := range recs {
			guid, ok := rec.Get("guid")
			if !ok {
				continue
			}
			if name, ok := rec.Get("name"); ok {
				b.resolver.RecordName(rec.Kind(), name, guid)
			}
		}
	}
}

// addEntity creates the entity node plus one property or command node
// per declared rule. Commands register with the resolver so that other
// entities invoking them bind to the owning entity.
//
// The entity is keyed by its file base name, which is what referencing
// records use; any name field in the record itself is ignored.
func (b *builder) addEntity(rec *records.Record) error {
	name := rec.BaseName
	attrs := rec.Attrs()
	attrs["name"] = name
	b.g.SetNode(name, graph.KindEntity, attrs)

	ruleSpec := b.settings.Spec("rule")
	properties := rec.Map("properties")
	for _, propName := range sortedKeys(properties) {
		ref := graph.PropertyKey(propName, name)
		for _, raw := range asList(properties[propName]) {
			fields, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			rule := records.Wrap(ruleSpec, fields)

			rAttrs := rule.Attrs()
			rAttrs["name"] = propName
			rAttrs["entity"] = name

			code, _ := rule.Get("property_type")
			kind := graph.KindProperty
			if code == "CMD" {
				kind = graph.KindCommand
				b.resolver.RecordCommand(propName, name)
			}
			b.g.SetNode(ref, kind, rAttrs)

			link, known := ruleLinks[code]
			if !known {
				link = graph.LinkType("unknown->" + code)
			}
			b.g.AddEdge(name, ref, graph.KindLink, link, copyAttrs(rAttrs))

			for _, c := range rule.List("conditions") {
				if guid, ok := c.(string); ok && guid != "" {
					b.g.AddEdge(ref, records.CanonicalGUID(guid), graph.KindLink, link, copyAttrs(rAttrs))
				}
			}
		}
	}
	return nil
}

// addMetadata augments the entity node and links its read-only
// condition, icon, and aggregate rules.
func (b *builder) addMetadata(rec *records.Record) error {
	name, ok := rec.Get("name")
	if !ok {
		name = rec.BaseName
	}
	b.g.SetNode(name, graph.KindEntity, map[string]string{"name": name, "entity": name})

	data := rec.Map("data")
	if data == nil {
		return nil
	}

	if ro, ok := data[rec.RawField("read_only")].(map[string]any); ok {
		if guid, ok := ro[rec.RawField("condition")].(string); ok && guid != "" {
			b.g.AddEdge(name, records.CanonicalGUID(guid), graph.KindLink, graph.LinkReadOnly,
				map[string]string{"name": "Entity metadata"})
		}
	}

	if icon, ok := data["icon"].(string); ok && icon != "" {
		b.g.AddEdge(name, records.CanonicalGUID(icon), graph.KindLink, graph.LinkIconImage,
			map[string]string{"name": "Entity metadata"})
	}

	aggSpec := b.settings.Spec("aggregation")
	for _, raw := range asList(data["aggregations"]) {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		agg := records.Wrap(aggSpec, fields)
		aggName, ok := agg.Get("name")
		if !ok {
			continue
		}

		attrs := agg.Attrs()
		attrs["entity"] = name
		attrs["rule_type"] = "aggregation"
		key := graph.PropertyKey(aggName, name)
		b.g.SetNode(key, graph.KindProperty, attrs)

		if owner, ok := agg.Get("property"); ok {
			ownerKey := graph.PropertyKey(bareProperty(owner), name)
			b.g.AddEdge(key, ownerKey, graph.KindLink, graph.LinkAggregation, copyAttrs(attrs))
		}
		if cond, ok := agg.Get("condition"); ok {
			b.g.AddEdge(key, records.CanonicalGUID(cond), graph.KindLink, graph.LinkAggregation, copyAttrs(attrs))
		}
	}
	return nil
}

// addIndex creates one index node per declared field mapping. The
// property link is best effort: it is added only when the exact
// property node exists.
func (b *builder) addIndex(rec *records.Record) error {
	indexName, ok := rec.Get("name")
	if !ok {
		indexName = rec.BaseName
	}
	entity, _ := rec.Get("entity")

	fieldSpec := b.settings.Spec("indexfield")
	for _, raw := range rec.List("fields") {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		f := records.Wrap(fieldSpec, fields)
		fieldName, ok := f.Get("field")
		if !ok {
			continue
		}

		name := indexName + "." + fieldName
		key := graph.PropertyKey(name, entity)
		attrs := f.Attrs()
		attrs["name"] = name
		if entity != "" {
			attrs["entity"] = entity
		}
		b.g.SetNode(key, graph.KindIndex, attrs)
		b.resolver.RecordName(graph.KindIndex, name, key)
		b.resolver.RecordName(graph.KindIndex, fieldName, key)

		if entity != "" {
			b.g.AddEdge(entity, key, graph.KindLink, graph.LinkEntityIndex, copyAttrs(attrs))
		}
		if prop, ok := f.Get("property"); ok {
			propKey := graph.PropertyKey(bareProperty(prop), entity)
			if b.g.HasNode(propKey) {
				b.g.AddEdge(key, propKey, graph.KindLink, graph.LinkIndexProperty, copyAttrs(attrs))
			}
		}
	}
	return nil
}

// addAsset creates a leaf media node (image or sound).
func (b *builder) addAsset(rec *records.Record) error {
	guid, ok := rec.Get("guid")
	if !ok {
		return fmt.Errorf("%s record has no identifier", rec.Kind())
	}
	b.g.SetNode(guid, rec.Kind(), rec.Attrs())
	return nil
}

// addCondition creates the condition node, keyed by the canonical form
// of its file name, and links any properties its expression reads.
func (b *builder) addCondition(rec *records.Record) error {
	guid := records.CanonicalGUID(rec.BaseName)
	b.g.SetNode(guid, graph.KindCondition, rec.Attrs())

	expr, ok := rec.Get("expression")
	if !ok {
		return nil
	}
	doc, err := markup.Parse(expr, markup.ExpressionTable)
	if err != nil {
		return fmt.Errorf("condition expression: %w", err)
	}

	entity, _ := rec.Get("entity")
	for _, d := range doc.Find("simpleConditionExpression") {
		for _, prop := range d.All("property") {
			b.resolver.PropertyEdge(b.g, guid, prop, entity, graph.KindLink, d.Link, d.Attrs())
		}
	}
	return nil
}

// addFormflow creates the workflow node and its edges. Edges come from
// both the structured task list and the embedded markup; the two
// sources overlap for some step kinds and both are kept.
func (b *builder) addFormflow(rec *records.Record) error {
	guid, ok := rec.Get("guid")
	if !ok {
		return fmt.Errorf("formflow record has no identifier")
	}
	b.g.SetNode(guid, graph.KindFormflow, rec.Attrs())

	entity, hasEntity := rec.Get("entity")
	if hasEntity {
		b.g.AddEdge(entity, guid, graph.KindLink, graph.LinkFormflowEntity, nil)
	}

	if icon, ok := rec.Get("image"); ok {
		b.g.AddEdge(guid, records.CanonicalGUID(icon), graph.KindLink, graph.LinkFormflowIcon, nil)
	}

	fcSpec := b.settings.Spec("flowcondition")
	for _, raw := range rec.List("conditions") {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fc := records.Wrap(fcSpec, fields)
		cond, ok := fc.Get("condition")
		if !ok {
			continue
		}
		cond = records.CanonicalGUID(cond)
		attrs := map[string]string{"condition": cond}
		if stepGUID, ok := fc.Get("guid"); ok {
			attrs["guid"] = stepGUID
		}
		b.g.AddEdge(guid, cond, graph.KindLink, graph.LinkFormflowCondition, attrs)
	}

	taskSpec := b.settings.Spec(graph.KindTask)
	for _, raw := range rec.List("tasks") {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		b.addTask(guid, entity, records.Wrap(taskSpec, fields))
	}

	if data, ok := rec.Get("data"); ok {
		if err := b.addWorkflowMarkup(guid, entity, data); err != nil {
			return err
		}
	}
	return nil
}

// addTask links one structured workflow step by its discriminator.
// Steps of other kinds carry no cross reference and are skipped.
func (b *builder) addTask(source, entity string, task *records.Record) {
	code, _ := task.Get("task")
	step, ok := taskLinks[code]
	if !ok {
		return
	}
	target, ok := task.Get(step.ref)
	if !ok {
		return
	}

	switch step.ref {
	case "template":
		target = b.nameOrGUID(graph.KindTemplate, target)
	case "formflow":
		target = b.nameOrGUID(graph.KindFormflow, target)
	case "command":
		owner := b.resolver.ResolveCommand(target, entity)
		target = graph.PropertyKey(target, owner)
	}
	b.g.AddEdge(source, target, graph.KindTask, step.link, task.Attrs())
}

// addWorkflowMarkup extracts activity references from a workflow's
// embedded markup and links them like their structured counterparts.
func (b *builder) addWorkflowMarkup(source, entity, data string) error {
	doc, err := markup.Parse(data, markup.WorkflowTable)
	if err != nil {
		return fmt.Errorf("workflow markup: %w", err)
	}

	for _, ref := range workflowActivityRefs {
		for _, d := range doc.Find(ref.tag) {
			for _, value := range d.All(ref.key) {
				b.g.AddEdge(source, b.activityTarget(ref.key, value, entity), graph.KindLink, d.Link, d.Attrs())
			}
		}
	}
	return nil
}

// activityTarget binds one markup activity reference to a node key.
func (b *builder) activityTarget(key, value, entity string) string {
	switch key {
	case "template":
		return b.nameOrGUID(graph.KindTemplate, value)
	case "formflow":
		return b.nameOrGUID(graph.KindFormflow, value)
	case "command":
		return graph.PropertyKey(value, b.resolver.ResolveCommand(value, entity))
	default:
		return records.CanonicalGUID(value)
	}
}

// nameOrGUID binds a reference that may be a display name or an
// identifier: registered names win, anything else is treated as an
// identifier.
func (b *builder) nameOrGUID(kind graph.Kind, ref string) string {
	if key, ok := b.resolver.LookupName(kind, ref); ok {
		return key
	}
	return records.CanonicalGUID(ref)
}

// addTemplate creates the template node and links everything its form
// markup and dependency manifest reference.
func (b *builder) addTemplate(rec *records.Record) error {
	guid, ok := rec.Get("guid")
	if !ok {
		return fmt.Errorf("template record has no identifier")
	}
	b.g.SetNode(guid, graph.KindTemplate, rec.Attrs())

	entity, hasEntity := rec.Get("entity")
	if hasEntity {
		b.g.AddEdge(entity, guid, graph.KindLink, graph.LinkTemplateEntity, nil)
	}

	if data, ok := rec.Get("data"); ok {
		doc, err := markup.Parse(data, markup.FormTable)
		if err != nil {
			return fmt.Errorf("form markup: %w", err)
		}

		for _, d := range doc.Find("form") {
			for _, img := range d.All("image") {
				b.g.AddEdge(guid, records.CanonicalGUID(img), graph.KindLink, graph.LinkBackgroundImage, d.Attrs())
			}
		}
		for _, d := range doc.Find("control", "SIM") {
			for _, img := range d.All("image") {
				b.g.AddEdge(guid, records.CanonicalGUID(img), graph.KindLink, graph.LinkStaticImage, d.Attrs())
			}
		}
		for _, d := range doc.Find("control", "TIL") {
			b.addTile(guid, entity, d)
		}
		if err := b.addListRefs(guid, doc); err != nil {
			return fmt.Errorf("form markup: %w", err)
		}
	}

	if deps, ok := rec.Get("dependencies"); ok {
		doc, err := markup.Parse(deps, markup.DependencyTable)
		if err != nil {
			return fmt.Errorf("dependency markup: %w", err)
		}
		b.addDependencies(guid, entity, doc)
	}
	return nil
}

// addTile links one dashboard tile to each template, workflow,
// command, and image it references. The tile's attributes ride along
// on every edge; its entity defaults to the hosting template's.
func (b *builder) addTile(source, entity string, d markup.Descriptor) {
	attrs := d.Attrs()
	if _, ok := attrs["entity"]; !ok && entity != "" {
		attrs["entity"] = entity
	}

	templates := d.All("template")
	if len(templates) == 0 {
		// Legacy tiles reference the page by name instead of key.
		if name, ok := attrs["template_name"]; ok {
			if key, found := b.resolver.LookupName(graph.KindTemplate, name); found {
				templates = []string{key}
				attrs["template"] = key
			} else {
				slog.Warn("unresolved legacy page reference", "template_name", name, "template", source)
			}
		}
	}

	for _, target := range templates {
		b.g.AddEdge(source, records.CanonicalGUID(target), graph.KindTile, "", copyAttrs(attrs))
	}
	for _, target := range d.All("formflow") {
		b.g.AddEdge(source, records.CanonicalGUID(target), graph.KindTile, "", copyAttrs(attrs))
	}
	for _, command := range d.All("command") {
		owner := b.resolver.ResolveCommand(command, attrs["entity"])
		b.g.AddEdge(source, graph.PropertyKey(command, owner), graph.KindTile, "", copyAttrs(attrs))
	}
	for _, target := range d.All("image") {
		b.g.AddEdge(source, records.CanonicalGUID(target), graph.KindTile, "", copyAttrs(attrs))
	}
}

// addListRefs links list controls: entity-scoped lists resolve their
// references as bound properties, global lists bind to index fields.
func (b *builder) addListRefs(source string, doc *markup.Doc) error {
	for _, c := range listContainers {
		refs, err := doc.FindNested(c.field, c.target)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			attrs := map[string]string{"name": ref.Value}
			if ref.Scope == markup.ScopeGlobal {
				if key, ok := b.resolver.LookupName(graph.KindIndex, ref.Value); ok {
					b.g.AddEdge(source, key, graph.KindLink, graph.LinkListIndex, attrs)
				} else {
					slog.Debug("global list field has no index", "field", ref.Value, "template", source)
				}
				continue
			}
			b.resolver.PropertyEdge(b.g, source, ref.Value, ref.Scope, graph.KindLink, graph.LinkListProperty, attrs)
		}
	}
	return nil
}

// addDependencies links the explicit references in a template's
// dependency manifest.
func (b *builder) addDependencies(source, entity string, doc *markup.Doc) {
	forms := doc.ByAttr("templateID")
	for _, target := range sortedKeys(forms) {
		d := forms[target]
		b.g.AddEdge(source, records.CanonicalGUID(target), graph.KindLink, d.Link, d.Attrs())
	}

	flows := doc.ByAttr("workflowID")
	for _, target := range sortedKeys(flows) {
		d := flows[target]
		b.g.AddEdge(source, records.CanonicalGUID(target), graph.KindLink, d.Link, d.Attrs())
	}

	for _, d := range doc.Find("calculatedProperty") {
		for _, prop := range d.All("property") {
			b.resolver.PropertyEdge(b.g, source, prop, entity, graph.KindLink, d.Link, d.Attrs())
		}
	}
}

// addModule creates the module node, links its landing template, and
// registers its name and code for test reference resolution.
func (b *builder) addModule(rec *records.Record) error {
	guid, ok := rec.Get("guid")
	if !ok {
		return fmt.Errorf("module record has no identifier")
	}
	b.g.SetNode(guid, graph.KindModule, rec.Attrs())

	if name, ok := rec.Get("name"); ok {
		b.resolver.RecordName(graph.KindModule, name, guid)
	}
	if code, ok := rec.Get("code"); ok {
		b.resolver.RecordName(graph.KindModule, code, guid)
	}

	if target, ok := rec.Get("template"); ok {
		b.g.AddEdge(guid, records.CanonicalGUID(target), graph.KindLink, graph.LinkModule,
			map[string]string{"name": "Landing Page", "template": target})
	}
	return nil
}

// addTest scans one business test and links every artifact it
// references by display name. Unresolved names become the edge target
// verbatim and surface as undefined references.
func (b *builder) addTest(path string, matchers map[string]string) error {
	tf, err := records.LoadTestFile(path, matchers)
	if err != nil {
		return err
	}
	b.g.SetNode(tf.Name, graph.KindTest, map[string]string{"name": tf.Name})

	for _, kindName := range sortedKeys(matchers) {
		kind := graph.Kind(kindName)
		for _, ref := range tf.Refs(kindName) {
			target, ok := b.resolver.LookupName(kind, ref)
			if !ok {
				target = ref
			}
			b.g.AddEdge(tf.Name, target, graph.KindLink, graph.LinkBusinessTest,
				map[string]string{"name": ref})
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
