package store

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/role-annotator/annotation"
	"github.com/theimaginaryfoundation/role-annotator/annotation/fileutils"
)

func TestFileStoreLoadCreatesHeaderOnly(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	s := NewFileStore(fsys, "results/baseline.csv")

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	b, err := afero.ReadFile(fsys, "results/baseline.csv")
	require.NoError(t, err)
	assert.Equal(t, strings.Join(Header, ",")+"\n", string(b))
}

func TestFileStorePersistAndReload(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"results/out.csv", "results/out.xlsx"} {
		t.Run(path, func(t *testing.T) {
			t.Parallel()
			fsys := afero.NewMemMapFs()
			ctx := context.Background()

			s := NewFileStore(fsys, path)
			_, err := s.Load(ctx)
			require.NoError(t, err)

			s.Upsert(1, []annotation.RoleRecord{
				{Serial: 2, Speaker: "Rachel", DialogueID: 1, Role: annotation.RoleSupporter, Justification: "Encourages, \"warmly\"", Prompt: "p\nq", RawResponse: "r"},
				{Serial: 1, Speaker: "Ross", DialogueID: 1, Role: annotation.RoleProtagonist, Justification: "Leads", Prompt: "p\nq", RawResponse: "r"},
			})
			require.NoError(t, s.Persist(ctx))

			again := NewFileStore(fsys, path)
			got, err := again.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "Ross", got[0].Speaker)
			assert.Equal(t, annotation.RoleProtagonist, got[0].Role)
			assert.Equal(t, "Encourages, \"warmly\"", got[1].Justification)
			assert.Equal(t, "p\nq", got[1].Prompt)
			assert.Equal(t, annotation.StatusComplete, again.Status(1))
		})
	}
}

func TestFileStoreLongPrompt(t *testing.T) {
	t.Parallel()

	prompt := strings.Repeat("a", 40000)
	recs := []annotation.RoleRecord{
		{Serial: 1, Speaker: "Ross", DialogueID: 1, Role: annotation.RoleProtagonist, Justification: "Leads", Prompt: prompt},
	}
	ctx := context.Background()

	t.Run("xlsx", func(t *testing.T) {
		t.Parallel()
		fsys := afero.NewMemMapFs()
		s := NewFileStore(fsys, "results/out.xlsx")
		_, err := s.Load(ctx)
		require.NoError(t, err)

		s.Upsert(1, recs)
		err = s.Persist(ctx)
		require.ErrorIs(t, err, fileutils.ErrCellTooLong)

		got, err := NewFileStore(fsys, "results/out.xlsx").Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got, "a rejected persist must leave the previous file in place")
	})

	t.Run("csv", func(t *testing.T) {
		t.Parallel()
		fsys := afero.NewMemMapFs()
		s := NewFileStore(fsys, "results/out.csv")
		_, err := s.Load(ctx)
		require.NoError(t, err)

		s.Upsert(1, recs)
		require.NoError(t, s.Persist(ctx))

		got, err := NewFileStore(fsys, "results/out.csv").Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Len(t, got[0].Prompt, 40000)
	})
}

func TestFileStoreLegacyHeader(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	legacy := "Sr No.,Speaker,Dialogue_ID,Role,Justification,Prompt,Response\n" +
		"1,Ross,0,Neutral,Plain reply,prompt,raw\n" +
		"2.0,Rachel,0,Error,Failed after 3 attempts.,prompt,raw\n"
	require.NoError(t, afero.WriteFile(fsys, "old.csv", []byte(legacy), 0o644))

	s := NewFileStore(fsys, "old.csv")
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Serial)
	assert.Equal(t, annotation.StatusFailed, s.Status(0))

	// Persist rewrites with the current header.
	require.NoError(t, s.Persist(context.Background()))
	b, err := afero.ReadFile(fsys, "old.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), strings.Join(Header, ",")+"\n"))
}

func TestFileStoreReorderedColumns(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	data := "dialogue_id,serial,speaker,role,justification,prompt,raw_response\n4,9,Joey,Attacker,j,p,r\n"
	require.NoError(t, afero.WriteFile(fsys, "r.csv", []byte(data), 0o644))

	got, err := NewFileStore(fsys, "r.csv").Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, annotation.RoleRecord{Serial: 9, Speaker: "Joey", DialogueID: 4, Role: annotation.RoleAttacker, Justification: "j", Prompt: "p", RawResponse: "r"}, got[0])
}

func TestFileStoreRejectsUnknownHeader(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "bad.csv", []byte("a,b,c\n1,2,3\n"), 0o644))

	_, err := NewFileStore(fsys, "bad.csv").Load(context.Background())
	require.ErrorIs(t, err, ErrUnknownHeader)
}

func TestFileStoreBadSerial(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	data := strings.Join(Header, ",") + "\nx,Ross,1,Neutral,j,p,r\n"
	require.NoError(t, afero.WriteFile(fsys, "r.csv", []byte(data), 0o644))

	_, err := NewFileStore(fsys, "r.csv").Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}
