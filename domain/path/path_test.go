package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    Path
		wantErr bool
	}{
		{"dotted three segments", "test.table.a", Path{"test", "table", "a"}, false},
		{"slashed normalizes to dots", "/test/table/a/b", Path{"test", "table", "a.b"}, false},
		{"collection root", "test.table", Path{"test", "table", ""}, false},
		{"leading separators stripped", "..test.table", Path{"test", "table", ""}, false},
		{"single segment fails", "test", Path{}, true},
		{"empty fails", "", Path{}, true},
		{"empty interior label segment fails", "test.table.a..b", Path{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQualify(t *testing.T) {
	assert.Equal(t, "ns.coll", Qualify("ns", "coll", ""))
	assert.Equal(t, "ns.coll.a.b", Qualify("ns", "coll", "a.b"))
}

func TestPathContains(t *testing.T) {
	root := Path{Namespace: "test", Collection: "table", Label: ""}
	a := Path{Namespace: "test", Collection: "table", Label: "a"}
	ab := Path{Namespace: "test", Collection: "table", Label: "a.b"}
	other := Path{Namespace: "test", Collection: "other", Label: "a"}

	assert.True(t, root.Contains(a))
	assert.True(t, a.Contains(ab))
	assert.False(t, ab.Contains(a))
	assert.False(t, a.Contains(other))
}

func TestParent(t *testing.T) {
	ab := Path{Label: "a.b"}
	parent, ok := ab.Parent()
	assert.True(t, ok)
	assert.Equal(t, "a", parent)

	root := Path{Label: ""}
	_, ok = root.Parent()
	assert.False(t, ok)

	a := Path{Label: "a"}
	parent, ok = a.Parent()
	assert.True(t, ok)
	assert.Equal(t, "", parent)
}
