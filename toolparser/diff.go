package toolparser

import (
	"fmt"
	"strings"
)

// Diff 返回 current 相对 previous 新增的后缀。
// current 不以 previous 开头时返回空串与 ErrDiffInvariant。
func Diff(previous, current string) (string, error) {
	if !strings.HasPrefix(current, previous) {
		return "", fmt.Errorf("%w: sent %q, now %q", ErrDiffInvariant, previous, current)
	}
	return current[len(previous):], nil
}
