package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/refbridge/errors"
)

type article struct {
	Title      string
	Content    *page
	ContentID  string
	unexported string //nolint:unused // verifies unexported fields stay invisible
}

type page struct {
	Path  string
	Title string
}

func newArticleDescriptor(t *testing.T) *ClassDescriptor {
	t.Helper()

	accessor, err := NewStructAccessor(&article{})
	require.NoError(t, err)

	desc, err := NewClassDescriptor("article", accessor, ReferenceMapping{
		FieldName:    "Content",
		TargetType:   "page",
		ReferencedBy: "Path",
		InversedBy:   "ContentID",
		CommonFields: []CommonField{
			{TargetField: "Title", ReferencedBy: "Title", Sync: SyncToReference},
		},
	})
	require.NoError(t, err)
	return desc
}

func TestClassDescriptorValidation(t *testing.T) {
	accessor, err := NewStructAccessor(article{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		class    string
		accessor Accessor
		refs     []ReferenceMapping
		wantErr  bool
	}{
		{
			name:     "valid descriptor",
			class:    "article",
			accessor: accessor,
			refs:     []ReferenceMapping{{FieldName: "Content", TargetType: "page"}},
		},
		{
			name:     "empty class name",
			class:    "",
			accessor: accessor,
			wantErr:  true,
		},
		{
			name:    "nil accessor",
			class:   "article",
			wantErr: true,
		},
		{
			name:     "mapping without target type",
			class:    "article",
			accessor: accessor,
			refs:     []ReferenceMapping{{FieldName: "Content"}},
			wantErr:  true,
		},
		{
			name:     "duplicate field",
			class:    "article",
			accessor: accessor,
			refs: []ReferenceMapping{
				{FieldName: "Content", TargetType: "page"},
				{FieldName: "Content", TargetType: "page"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassDescriptor(tt.class, tt.accessor, tt.refs...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDescriptorLookups(t *testing.T) {
	desc := newArticleDescriptor(t)

	assert.Equal(t, "article", desc.Name())
	assert.Len(t, desc.References(), 1)

	ref, ok := desc.Reference("Content")
	require.True(t, ok)
	assert.Equal(t, "page", ref.TargetType)

	_, ok = desc.Reference("Missing")
	assert.False(t, ok)

	common := desc.CommonFields()
	require.Len(t, common, 1)
	assert.Equal(t, SyncToReference, common[0].Sync)
}

func TestStructAccessorGetSet(t *testing.T) {
	accessor, err := NewStructAccessor(&article{})
	require.NoError(t, err)

	a := &article{Title: "hello"}

	got, err := accessor.Get(a, "Title")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	require.NoError(t, accessor.Set(a, "ContentID", "/content/hello"))
	assert.Equal(t, "/content/hello", a.ContentID)

	require.NoError(t, accessor.Set(a, "Content", &page{Path: "/content/hello"}))
	require.NotNil(t, a.Content)
	assert.Equal(t, "/content/hello", a.Content.Path)

	// nil clears a pointer field
	require.NoError(t, accessor.Set(a, "Content", nil))
	assert.Nil(t, a.Content)
}

func TestStructAccessorUnknownField(t *testing.T) {
	accessor, err := NewStructAccessor(article{})
	require.NoError(t, err)

	_, err = accessor.Get(&article{}, "Nope")
	assert.True(t, errors.Is(err, errors.ErrFieldNotFound))

	err = accessor.Set(&article{}, "unexported", "x")
	assert.True(t, errors.Is(err, errors.ErrFieldNotFound))
}

func TestStructAccessorWrongType(t *testing.T) {
	accessor, err := NewStructAccessor(article{})
	require.NoError(t, err)

	_, err = accessor.Get(&page{}, "Title")
	assert.Error(t, err)
}

func TestFuncAccessor(t *testing.T) {
	values := map[string]any{"Title": "stored"}
	accessor := FuncAccessor{
		GetFunc: func(_ any, field string) (any, error) {
			v, ok := values[field]
			if !ok {
				return nil, errors.ErrFieldNotFound
			}
			return v, nil
		},
		SetFunc: func(_ any, field string, value any) error {
			values[field] = value
			return nil
		},
	}

	got, err := accessor.Get(nil, "Title")
	require.NoError(t, err)
	assert.Equal(t, "stored", got)

	require.NoError(t, accessor.Set(nil, "Title", "changed"))
	assert.Equal(t, "changed", values["Title"])

	_, err = accessor.Get(nil, "Missing")
	assert.True(t, errors.Is(err, errors.ErrFieldNotFound))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	desc := newArticleDescriptor(t)

	require.NoError(t, reg.Register(desc))
	assert.Error(t, reg.Register(desc), "duplicate registration should fail")

	got, err := reg.Lookup("article")
	require.NoError(t, err)
	assert.Same(t, desc, got)

	_, err = reg.Lookup("unknown")
	assert.True(t, errors.Is(err, errors.ErrDescriptorNotFound))

	got, err = reg.DescriptorFor(&article{})
	require.NoError(t, err)
	assert.Same(t, desc, got)

	assert.True(t, reg.Has(&article{}))
	assert.False(t, reg.Has(&page{}))
}

func TestTypeNameOf(t *testing.T) {
	assert.Equal(t, "article", TypeNameOf(article{}))
	assert.Equal(t, "article", TypeNameOf(&article{}))
	assert.Equal(t, "", TypeNameOf(nil))
}
