// Package templates selects and renders the warning email for a member's role.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/clubpulse/activity-monitor/models"
)

//go:embed html/*.html
var templateFS embed.FS

// Bucket identifies a template variant. It is stored on QueueEntry as template_id.
type Bucket string

const (
	BucketExecutive Bucket = "executive"
	BucketOfficer   Bucket = "officer"
	BucketMember    Bucket = "member"
	BucketGeneric   Bucket = "generic"
)

// resolution order when a role matches aliases of several buckets
var bucketOrder = []Bucket{BucketExecutive, BucketOfficer, BucketMember}

var subjects = map[Bucket]string{
	BucketExecutive: "Executive board activity check-in",
	BucketOfficer:   "Officer activity check-in",
	BucketMember:    "We miss you at the club",
	BucketGeneric:   "Club activity reminder",
}

// Aliases maps each role bucket to the role names that select it
type Aliases map[Bucket][]string

// DefaultAliases returns the built-in alias table
func DefaultAliases() Aliases {
	return Aliases{
		BucketExecutive: {"executive", "exec", "president", "vice president", "treasurer", "secretary", "board"},
		BucketOfficer:   {"officer", "coordinator", "chair", "lead", "committee"},
		BucketMember:    {"member", "general member", "general", "associate"},
	}
}

// AliasesFromConfig converts the configured bucket name to alias list map
func AliasesFromConfig(cfg map[string][]string) Aliases {
	aliases := DefaultAliases()
	for name, list := range cfg {
		bucket := Bucket(models.NormalizeRole(name))
		if _, known := subjects[bucket]; !known || bucket == BucketGeneric {
			continue
		}
		aliases[bucket] = list
	}
	return aliases
}

// Resolve picks the bucket for a role. An exact alias match wins; otherwise the first bucket
// with an alias contained in the role as a whole word. Empty or unmatched roles are generic.
func (a Aliases) Resolve(role string) Bucket {
	role = models.NormalizeRole(role)
	if role == "" {
		return BucketGeneric
	}

	for _, bucket := range bucketOrder {
		for _, alias := range a[bucket] {
			if models.NormalizeRole(alias) == role {
				return bucket
			}
		}
	}

	padded := " " + strings.Join(strings.Fields(role), " ") + " "
	for _, bucket := range bucketOrder {
		for _, alias := range a[bucket] {
			alias = models.NormalizeRole(alias)
			if alias != "" && strings.Contains(padded, " "+alias+" ") {
				return bucket
			}
		}
	}
	return BucketGeneric
}

// Data is substituted into a template
type Data struct {
	Name          string
	ActivityCount int
	Threshold     int
	Role          string
}

// Rendered is a ready-to-queue message
type Rendered struct {
	TemplateID string
	Subject    string
	Body       string
}

// Catalog holds the parsed templates
type Catalog struct {
	templates map[Bucket]*template.Template
}

// NewCatalog parses the embedded templates
func NewCatalog() (*Catalog, error) {
	c := &Catalog{templates: make(map[Bucket]*template.Template, len(subjects))}
	for bucket := range subjects {
		name := fmt.Sprintf("html/%s.html", bucket)
		tmpl, err := template.New(string(bucket)).Option("missingkey=error").ParseFS(templateFS, name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", bucket, err)
		}
		c.templates[bucket] = tmpl.Lookup(string(bucket) + ".html")
	}
	return c, nil
}

// Render executes the template for bucket. subjectPrefix, when set, is prepended to the subject.
func (c *Catalog) Render(bucket Bucket, data Data, subjectPrefix string) (*Rendered, error) {
	tmpl, ok := c.templates[bucket]
	if !ok || tmpl == nil {
		return nil, fmt.Errorf("template %q not found", bucket)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", bucket, err)
	}

	subject := subjects[bucket]
	if prefix := strings.TrimSpace(subjectPrefix); prefix != "" {
		subject = prefix + " " + subject
	}

	return &Rendered{
		TemplateID: string(bucket),
		Subject:    subject,
		Body:       buf.String(),
	}, nil
}
