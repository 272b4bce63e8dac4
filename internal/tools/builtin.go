package tools

import "strings"

func init() {
	MustRegister("setup_workshop_rag", func(p Params) string {
		var b strings.Builder
		b.WriteString("Setup RAG system for workshop")
		clause(&b, p, "workshop_name", " named '%s'")
		clause(&b, p, "workshop_content", " with content: %s")
		return b.String()
	})
	MustRegister("clone_showroom_template", func(p Params) string {
		var b strings.Builder
		b.WriteString("Clone showroom template")
		clause(&b, p, "template_name", " '%s'")
		clause(&b, p, "workshop_name", " for workshop '%s'")
		return b.String()
	})
	MustRegister("analyze_repository", func(p Params) string {
		var b strings.Builder
		b.WriteString("Analyze repository")
		clause(&b, p, "repository_url", " at %s")
		return b.String()
	})
	MustRegister("create_workshop", func(p Params) string {
		var b strings.Builder
		b.WriteString("Create workshop")
		clause(&b, p, "workshop_name", " named '%s'")
		clause(&b, p, "repository_url", " from repository %s")
		return b.String()
	})
	MustRegister("validate_workshop_content", func(p Params) string {
		var b strings.Builder
		b.WriteString("Validate workshop content")
		clause(&b, p, "workshop_content", ": %s")
		return b.String()
	})
	MustRegister("validate_external_references", workshopScoped("Validate external references for workshop", " '%s'"))
	MustRegister("update_rag_content", workshopScoped("Update RAG content for workshop", " '%s'"))
	MustRegister("enhance_with_references", workshopScoped("Enhance workshop content with validated references", " for '%s'"))
	MustRegister("manage_workshop_repository", func(p Params) string {
		var b strings.Builder
		b.WriteString("Manage workshop repository")
		clause(&b, p, "repository_name", " '%s'")
		return b.String()
	})
	MustRegister("update_workshop", workshopScoped("Update workshop", " '%s'"))
	MustRegister("generate_workshop_documentation", workshopScoped("Generate documentation for workshop", " '%s'"))
}

func workshopScoped(prefix, format string) TemplateFunc {
	return func(p Params) string {
		var b strings.Builder
		b.WriteString(prefix)
		clause(&b, p, "workshop_name", format)
		return b.String()
	}
}

// clause appends format with the parameter value substituted, or nothing when
// the parameter is absent.
func clause(b *strings.Builder, p Params, key, format string) {
	if !p.Has(key) {
		return
	}
	b.WriteString(strings.Replace(format, "%s", p.Get(key), 1))
}
