package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartattendance/internal/metrics"
	"smartattendance/internal/model"
	"smartattendance/internal/store"
)

func strPtr(s string) *string { return &s }

var fixedNow = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

func newService(opts ...Option) (*Service, *store.Memory) {
	mem := store.NewMemory()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(mem, opts...), mem
}

type stubTemplates struct {
	ref string
	err error
	got []string
}

func (s *stubTemplates) StoreTemplate(_ context.Context, data string) (string, error) {
	s.got = append(s.got, data)
	return s.ref, s.err
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	jane, err := svc.Register(ctx, "  Jane Doe ", " IDX-1 ", strPtr("data:image/png;base64,AAAA"))
	require.NoError(t, err)
	assert.NotEmpty(t, jane.ID)
	assert.Equal(t, "Jane Doe", jane.FullName)
	assert.Equal(t, "IDX-1", jane.IndexNumber)
	assert.Equal(t, fixedNow, jane.RegisteredAt)
	assert.True(t, jane.HasFaceTemplate())

	tests := []struct {
		name     string
		fullName string
		index    string
		want     error
	}{
		{name: "duplicate index", fullName: "Other", index: "IDX-1", want: model.ErrDuplicateIndex},
		{name: "duplicate after trim", fullName: "Other", index: "IDX-1  ", want: model.ErrDuplicateIndex},
		{name: "blank name", fullName: "   ", index: "IDX-2", want: model.ErrValidation},
		{name: "blank index", fullName: "Kofi", index: "", want: model.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.fullName, tt.index, nil)
			assert.ErrorIs(t, err, tt.want)
			all, err := svc.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1, "failed registration leaves the registry unchanged")
		})
	}

	kofi, err := svc.Register(ctx, "Kofi Mensah", "IDX-2", strPtr("   "))
	require.NoError(t, err)
	assert.Nil(t, kofi.FaceTemplate)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"IDX-1", "IDX-2"}, []string{all[0].IndexNumber, all[1].IndexNumber})
}

func TestRegisterCountsMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc, _ := newService(WithMetrics(metrics.New(reg)))
	ctx := context.Background()
	_, err := svc.Register(ctx, "Jane Doe", "IDX-1", nil)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Jane Again", "IDX-1", nil)
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var registered float64
	for _, mf := range families {
		if mf.GetName() == "students_registered_total" {
			registered = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, registered)
}

func TestFindAndSearch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	jane, err := svc.Register(ctx, "Jane Doe", "IDX-1", nil)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Kofi Mensah", "CS-042", nil)
	require.NoError(t, err)

	got, err := svc.FindByIndex(ctx, " IDX-1 ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, jane.ID, got.ID)

	got, err = svc.FindByID(ctx, jane.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jane Doe", got.FullName)

	got, err = svc.FindByIndex(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	tests := []struct {
		term string
		want []string
	}{
		{term: "", want: []string{"IDX-1", "CS-042"}},
		{term: "jane", want: []string{"IDX-1"}},
		{term: "cs-", want: []string{"CS-042"}},
		{term: "e", want: []string{"IDX-1", "CS-042"}},
		{term: "zzz", want: []string{}},
	}
	for _, tt := range tests {
		t.Run("search "+tt.term, func(t *testing.T) {
			res, err := svc.Search(ctx, tt.term)
			require.NoError(t, err)
			idx := []string{}
			for _, st := range res {
				idx = append(idx, st.IndexNumber)
			}
			assert.Equal(t, tt.want, idx)
		})
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	jane, err := svc.Register(ctx, "Jane Doe", "IDX-1", nil)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Kofi Mensah", "IDX-2", nil)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, jane.ID, model.StudentPatch{FullName: strPtr(" Jane A. Doe "), FaceTemplate: strPtr("tpl")})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Jane A. Doe", updated.FullName)
	assert.Equal(t, "IDX-1", updated.IndexNumber)
	assert.True(t, updated.HasFaceTemplate())
	assert.Equal(t, jane.RegisteredAt, updated.RegisteredAt)

	_, err = svc.Update(ctx, jane.ID, model.StudentPatch{IndexNumber: strPtr("IDX-2")})
	assert.ErrorIs(t, err, model.ErrDuplicateIndex)

	_, err = svc.Update(ctx, jane.ID, model.StudentPatch{FullName: strPtr("")})
	assert.ErrorIs(t, err, model.ErrValidation)

	missing, err := svc.Update(ctx, "nope", model.StudentPatch{FullName: strPtr("x")})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteKeepsAttendance(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService()
	jane, err := svc.Register(ctx, "Jane Doe", "IDX-1", strPtr("tpl"))
	require.NoError(t, err)
	rec := model.AttendanceRecord{ID: "a1", StudentID: jane.ID, StudentFullName: jane.FullName, StudentIndexNumber: jane.IndexNumber, Timestamp: fixedNow, Date: "2026-03-02", Time: "08:30:00"}
	require.NoError(t, mem.InsertAttendance(ctx, rec))

	removed, err := svc.Delete(ctx, jane.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = svc.Delete(ctx, jane.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	records, err := mem.ListAttendance(ctx, model.AttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, []model.AttendanceRecord{rec}, records)
}

func TestTemplateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("uploaded reference replaces inline data", func(t *testing.T) {
		ts := &stubTemplates{ref: "https://cdn.test/face.jpg"}
		svc, _ := newService(WithTemplateStore(ts))
		st, err := svc.Register(ctx, "Jane Doe", "IDX-1", strPtr("data:image/jpeg;base64,AAAA"))
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.test/face.jpg", *st.FaceTemplate)
		assert.Equal(t, []string{"data:image/jpeg;base64,AAAA"}, ts.got)
	})

	t.Run("failed upload keeps inline data", func(t *testing.T) {
		ts := &stubTemplates{err: errors.New("boom")}
		svc, _ := newService(WithTemplateStore(ts))
		st, err := svc.Register(ctx, "Jane Doe", "IDX-1", strPtr("data:image/jpeg;base64,AAAA"))
		require.NoError(t, err)
		assert.Equal(t, "data:image/jpeg;base64,AAAA", *st.FaceTemplate)
	})

	t.Run("no template skips upload", func(t *testing.T) {
		ts := &stubTemplates{ref: "x"}
		svc, _ := newService(WithTemplateStore(ts))
		_, err := svc.Register(ctx, "Jane Doe", "IDX-1", nil)
		require.NoError(t, err)
		assert.Empty(t, ts.got)
	})
}
