package sitetemplate

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parapet/portal/pkg/model"
)

type stubPolicy struct {
	stale bool
	err   error
}

func (s stubPolicy) IsStale(ctx context.Context, layout *model.Layout) (bool, error) {
	return s.stale, s.err
}

type stubSource struct {
	template *model.Layout
}

func (s stubSource) TemplateLayout(ctx context.Context, layout *model.Layout) (*model.Layout, error) {
	if s.template == nil {
		return nil, errors.New("no template")
	}
	return s.template, nil
}

type recordingCopier struct {
	calls    int
	writer   *memoryLayouts
	template *model.Layout
}

func (c *recordingCopier) CopyLayout(ctx context.Context, template, target *model.Layout) error {
	c.calls++
	c.template = template
	fresh, err := c.writer.Layout(ctx, target.PLID)
	if err != nil {
		return err
	}
	fresh.Name = template.Name
	return c.writer.UpdateLayout(ctx, fresh)
}

// memoryLayouts is a minimal LayoutWriter over a map.
type memoryLayouts struct {
	layouts map[int64]*model.Layout
}

func (m *memoryLayouts) Layout(ctx context.Context, plid int64) (*model.Layout, error) {
	l, ok := m.layouts[plid]
	if !ok {
		return nil, errors.New("layout not found")
	}
	return l.Clone(), nil
}

func (m *memoryLayouts) UpdateLayout(ctx context.Context, layout *model.Layout) error {
	m.layouts[layout.PLID] = layout.Clone()
	return nil
}

func TestSyncIfStale_FreshLayoutUntouched(t *testing.T) {
	writer := &memoryLayouts{layouts: map[int64]*model.Layout{}}
	copier := &recordingCopier{writer: writer}
	sync := NewSynchronizer(stubPolicy{stale: false}, stubSource{}, copier, writer)

	rewritten, err := sync.SyncIfStale(context.Background(), &model.Layout{PLID: 1})
	require.NoError(t, err)
	assert.False(t, rewritten)
	assert.Zero(t, copier.calls)
}

func TestSyncIfStale_CopiesAndStamps(t *testing.T) {
	target := &model.Layout{PLID: 1, Name: "Old", TypeSettings: model.TypeSettings{}}
	template := &model.Layout{PLID: 100, Name: "Fresh"}

	writer := &memoryLayouts{layouts: map[int64]*model.Layout{1: target}}
	copier := &recordingCopier{writer: writer}
	sync := NewSynchronizer(stubPolicy{stale: true}, stubSource{template: template}, copier, writer)

	copyTime := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	sync.now = func() time.Time { return copyTime }

	rewritten, err := sync.SyncIfStale(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, rewritten)
	assert.Equal(t, 1, copier.calls)
	assert.Equal(t, template, copier.template)

	persisted := writer.layouts[1]
	assert.Equal(t, "Fresh", persisted.Name)
	assert.Equal(t,
		strconv.FormatInt(copyTime.UnixMilli(), 10),
		persisted.TypeSettings.Get(model.LastTemplateCopyKey))
}

func TestSyncIfStale_PolicyErrorPropagates(t *testing.T) {
	writer := &memoryLayouts{layouts: map[int64]*model.Layout{}}
	copier := &recordingCopier{writer: writer}
	sync := NewSynchronizer(stubPolicy{err: errors.New("boom")}, stubSource{}, copier, writer)

	_, err := sync.SyncIfStale(context.Background(), &model.Layout{PLID: 1})
	assert.Error(t, err)
	assert.Zero(t, copier.calls)
}

func TestSyncIfStale_MissingTemplateFails(t *testing.T) {
	writer := &memoryLayouts{layouts: map[int64]*model.Layout{}}
	copier := &recordingCopier{writer: writer}
	sync := NewSynchronizer(stubPolicy{stale: true}, stubSource{}, copier, writer)

	_, err := sync.SyncIfStale(context.Background(), &model.Layout{PLID: 1})
	assert.Error(t, err)
	assert.Zero(t, copier.calls)
}
