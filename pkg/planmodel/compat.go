package planmodel

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// tagVersion splits a "name/x.y.z" schema tag into its semver portion.
func tagVersion(tag string) (*semver.Version, error) {
	idx := strings.LastIndex(tag, "/")
	if idx < 0 || idx == len(tag)-1 {
		return nil, fmt.Errorf("planmodel: malformed schema tag %q", tag)
	}
	return semver.NewVersion(tag[idx+1:])
}

// CheckSchemaCompatible reports whether a document's schema tag is
// compatible with an engine-supported constraint (e.g. "^0.0.3"), the same
// shape as the teacher's pack.CheckCompatibility.
func CheckSchemaCompatible(tag, constraintExpr string) error {
	v, err := tagVersion(tag)
	if err != nil {
		return err
	}
	c, err := semver.NewConstraint(constraintExpr)
	if err != nil {
		return fmt.Errorf("planmodel: invalid constraint %q: %w", constraintExpr, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("planmodel: schema tag %q does not satisfy constraint %q", tag, constraintExpr)
	}
	return nil
}
