package archive

import (
	"fmt"
	"path"
	"strings"

	"github.com/phambaophuc/image-optimizer/pkg/utils"
)

// NameResolver hands out unique entry names in call order.
type NameResolver struct {
	used map[string]bool
}

func NewNameResolver() *NameResolver {
	return &NameResolver{used: make(map[string]bool)}
}

// Resolve returns `<stem>-optimized.<ext>`, suffixed with -1, -2, ... when
// that name was already handed out.
func (r *NameResolver) Resolve(originalName, mimeType string) string {
	name := utils.OptimizedFilename(originalName, mimeType)
	if !r.used[strings.ToLower(name)] {
		r.used[strings.ToLower(name)] = true
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d%s", base, n, ext)
		if !r.used[strings.ToLower(candidate)] {
			r.used[strings.ToLower(candidate)] = true
			return candidate
		}
	}
}
