// Package artifact renders the governance files repogov proposes:
// Terraform collaborator declarations and line-oriented ignore lists.
package artifact

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// CollaboratorPurpose is the purpose tag of collaborator proposals.
const CollaboratorPurpose = "collaborator-add"

const collaboratorResource = "github_repository_collaborator"

// Permissions accepted by github_repository_collaborator.
var Permissions = []string{"pull", "triage", "push", "maintain", "admin"}

var (
	ErrInvalidUsername   = errors.New("invalid username")
	ErrInvalidPermission = errors.New("invalid permission")
)

// GitHub logins: alphanumerics and single hyphens, at most 39 characters.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9]|-[A-Za-z0-9]){0,38}$`)

// Collaborator grants Username a Permission on the Terraform-managed
// Repository.
type Collaborator struct {
	Username   string `json:"username"`
	Permission string `json:"permission"`
	Repository string `json:"repository"`
}

// Validate checks the username and permission.
func (c Collaborator) Validate() error {
	var errs []error
	if !usernamePattern.MatchString(c.Username) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidUsername, c.Username))
	}
	if !validPermission(c.Permission) {
		errs = append(errs, fmt.Errorf("%w: %q (want one of %s)", ErrInvalidPermission, c.Permission, strings.Join(Permissions, ", ")))
	}
	if c.Repository == "" {
		errs = append(errs, errors.New("repository is required"))
	}
	return errors.Join(errs...)
}

func validPermission(p string) bool {
	for _, known := range Permissions {
		if p == known {
			return true
		}
	}
	return false
}

// ResourceName is the Terraform resource label for c. Characters not
// allowed in HCL identifiers become underscores.
func (c Collaborator) ResourceName() string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, c.Username)
	if name == "" || (name[0] >= '0' && name[0] <= '9') || name[0] == '-' {
		name = "user_" + name
	}
	return name
}

// CollaboratorPath is where the declaration for username lives.
func CollaboratorPath(dir, username string) string {
	return path.Join(dir, fmt.Sprintf("collaborator_%s.tf", username))
}

// RenderCollaborator returns the formatted HCL declaration for c.
func RenderCollaborator(c Collaborator) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	f := hclwrite.NewEmptyFile()
	block := f.Body().AppendNewBlock("resource", []string{collaboratorResource, c.ResourceName()})
	body := block.Body()
	body.SetAttributeValue("repository", cty.StringVal(c.Repository))
	body.SetAttributeValue("username", cty.StringVal(c.Username))
	body.SetAttributeValue("permission", cty.StringVal(c.Permission))

	return hclwrite.Format(f.Bytes()), nil
}

// ParseCollaborators extracts every collaborator resource declared in src.
func ParseCollaborators(src []byte, filename string) ([]Collaborator, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", filename, diags.Error())
	}

	content, _, diags := file.Body.PartialContent(&hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "resource", LabelNames: []string{"type", "name"}},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("read %s: %s", filename, diags.Error())
	}

	var out []Collaborator
	for _, block := range content.Blocks {
		if block.Labels[0] != collaboratorResource {
			continue
		}
		attrs, diags := block.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("read %s: %s", filename, diags.Error())
		}
		out = append(out, Collaborator{
			Repository: stringAttr(attrs, "repository"),
			Username:   stringAttr(attrs, "username"),
			Permission: stringAttr(attrs, "permission"),
		})
	}
	return out, nil
}

func stringAttr(attrs hcl.Attributes, name string) string {
	attr, ok := attrs[name]
	if !ok {
		return ""
	}
	val, diags := attr.Expr.Value(&hcl.EvalContext{})
	if diags.HasErrors() || val.Type() != cty.String || val.IsNull() {
		return ""
	}
	return val.AsString()
}
