package encoder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

func testClasses() map[string][]string {
	return map[string][]string{
		"maker":     {"AUDI", "BMW", "TOYOTA"},
		"fuel_type": {"DIESEL", "PETROL"},
	}
}

func newRegistry(t *testing.T, policy Policy) *Registry {
	t.Helper()
	r, err := New(testClasses(), policy)
	require.NoError(t, err)
	return r
}

func TestClassesFor(t *testing.T) {
	r := newRegistry(t, Strict)

	classes, err := r.ClassesFor("maker")
	require.NoError(t, err)
	assert.Equal(t, []string{"AUDI", "BMW", "TOYOTA"}, classes)

	// callers get a copy
	classes[0] = "MUTATED"
	again, _ := r.ClassesFor("maker")
	assert.Equal(t, "AUDI", again[0])

	_, err = r.ClassesFor("colour")
	var unknown *errors.UnknownFieldError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "colour", unknown.Field)
}

func TestEncodeStrict(t *testing.T) {
	r := newRegistry(t, Strict)

	idx, err := r.Encode("maker", "TOYOTA")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = r.Encode("maker", "ALIENMOTORS")
	var unknown *errors.UnknownCategoryError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "maker", unknown.Field)
	assert.Equal(t, "ALIENMOTORS", unknown.Value)

	classes, _ := r.ClassesFor("maker")
	assert.Len(t, classes, 3, "strict policy must not grow the vocabulary")
	assert.Empty(t, r.Extensions())
}

func TestEncodePermissive(t *testing.T) {
	r := newRegistry(t, Permissive)

	idx, err := r.Encode("maker", "ALIENMOTORS")
	require.NoError(t, err)
	assert.Equal(t, 3, idx)

	classes, _ := r.ClassesFor("maker")
	assert.Equal(t, []string{"AUDI", "BMW", "TOYOTA", "ALIENMOTORS"}, classes)

	again, err := r.Encode("maker", "ALIENMOTORS")
	require.NoError(t, err)
	assert.Equal(t, 3, again, "a label is appended once")

	assert.Equal(t, map[string][]string{"maker": {"ALIENMOTORS"}}, r.Extensions())

	_, err = r.Encode("colour", "RED")
	assert.True(t, errors.Is(err, errors.ErrConfiguration), "permissive policy never invents encoders")
}

func TestEncodePermissiveConcurrent(t *testing.T) {
	r := newRegistry(t, Permissive)

	const workers = 32
	results := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// half the workers share a label, the rest use distinct labels
			label := "SHARED"
			if i%2 == 1 {
				label = fmt.Sprintf("MAKER-%02d", i)
			}
			idx, err := r.Encode("maker", label)
			assert.NoError(t, err)
			results[i] = idx
		}(i)
	}
	wg.Wait()

	classes, err := r.ClassesFor("maker")
	require.NoError(t, err)
	assert.Len(t, classes, 3+1+workers/2)

	for i, idx := range results {
		label := "SHARED"
		if i%2 == 1 {
			label = fmt.Sprintf("MAKER-%02d", i)
		}
		assert.Equal(t, label, classes[idx])
	}

	indices := append([]int(nil), results...)
	sort.Ints(indices)
	assert.GreaterOrEqual(t, indices[0], 3)
	assert.Less(t, indices[len(indices)-1], len(classes))
}

func TestDecode(t *testing.T) {
	r := newRegistry(t, Strict)

	v, err := r.Decode("fuel_type", 1)
	require.NoError(t, err)
	assert.Equal(t, "PETROL", v)

	_, err = r.Decode("fuel_type", 2)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = r.Decode("colour", 0)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestLoad(t *testing.T) {
	r, err := Load(strings.NewReader(`{"maker":["AUDI","BMW"],"colour":["RED"]}`), Strict)
	require.NoError(t, err)
	assert.Equal(t, []string{"colour", "maker"}, r.Fields())
	assert.True(t, r.Has("colour"))
	assert.Equal(t, Strict, r.Policy())

	_, err = Load(strings.NewReader(`{"maker":["AUDI","AUDI"]}`), Strict)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	_, err = Load(strings.NewReader(`not json`), Strict)
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "label_encoders.json"), Strict)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "label_encoders.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"maker":["AUDI"]}`), 0o600))

	r, err := LoadFile(path, Permissive)
	require.NoError(t, err)
	assert.Equal(t, Permissive, r.Policy())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)

	p, err = ParsePolicy(" Permissive ")
	require.NoError(t, err)
	assert.Equal(t, Permissive, p)

	_, err = ParsePolicy("lenient")
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	_, err = New(testClasses(), Policy("lenient"))
	assert.Error(t, err)
}
