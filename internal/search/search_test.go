package search

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simscore/api/internal/model"
)

func sampleRecords() []IdeaRecord {
	ideas := []model.EvaluatedIdea{
		{ID: model.IDFromIndex(0), Text: "More PARKS downtown", ClusterID: model.Int(0)},
		{ID: model.IDFromIndex(1), Text: "Protected bike lanes", ClusterID: model.Int(1)},
		{ID: model.IDFromIndex(2), Text: "Pocket parks near schools", ClusterID: model.Int(0)},
	}
	return Records("s1", ideas, []model.ClusterSummary{{ID: 0, Name: "Green space"}, {ID: 1, Name: "Transit"}})
}

func TestRecords(t *testing.T) {
	records := sampleRecords()
	require.Len(t, records, 3)
	assert.Equal(t, "s1", records[0].SessionID)
	assert.Equal(t, "0", records[0].ItemID)
	assert.Equal(t, "Green space", records[0].ClusterName)
	assert.NotEqual(t, records[0].ID, records[1].ID)
	assert.Regexp(t, `^[0-9a-f]+$`, records[0].ID)
}

func TestScanIsCaseInsensitive(t *testing.T) {
	results, total := Scan(sampleRecords(), "parks", 0)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"0", "2"}, []string{results[0].ItemID, results[1].ItemID})

	results, total = Scan(sampleRecords(), "parks SCHOOLS", 0)
	assert.Equal(t, 1, total)
	assert.Equal(t, "2", results[0].ItemID)

	results, total = Scan(sampleRecords(), "transit", 0)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Transit", results[0].ClusterName)
}

func TestScanLimit(t *testing.T) {
	results, total := Scan(sampleRecords(), "", 2)
	assert.Equal(t, 3, total)
	assert.Len(t, results, 2)
}

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	svc := NewService(nil, nil)
	resp := svc.Search(Query{SessionID: "s1", Text: "bike"}, sampleRecords())
	assert.Equal(t, SourceScan, resp.Source)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "bike", resp.Query)

	resp = svc.Search(Query{SessionID: "s1", Text: "nothing"}, sampleRecords())
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)

	svc.IndexSession("s1", sampleRecords())
	svc.Close()
}

type fakeSearcher struct {
	healthy bool
	err     error
	calls   int
	indexed chan []IdeaRecord
}

func (f *fakeSearcher) Search(q Query) ([]Result, int, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, f.err
	}
	return []Result{{ItemID: "remote", Text: q.Text}}, 1, nil
}

func (f *fakeSearcher) Healthy() bool { return f.healthy }

func (f *fakeSearcher) IndexIdeas(_ string, ideas []IdeaRecord) error {
	f.indexed <- ideas
	return nil
}

func TestServicePrefersHealthyIndex(t *testing.T) {
	fake := &fakeSearcher{healthy: true, indexed: make(chan []IdeaRecord, 1)}
	svc := NewServiceWith(fake, fake, nil)

	resp := svc.Search(Query{SessionID: "s1", Text: "bike"}, sampleRecords())
	assert.Equal(t, SourceMeili, resp.Source)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "remote", resp.Results[0].ItemID)

	svc.IndexSession("s1", sampleRecords())
	assert.Len(t, <-fake.indexed, 3)
}

func TestServiceFallsBackOnIndexFailure(t *testing.T) {
	fake := &fakeSearcher{healthy: true, err: errors.New("boom")}
	svc := NewServiceWith(fake, nil, nil)
	resp := svc.Search(Query{SessionID: "s1", Text: "parks"}, sampleRecords())
	assert.Equal(t, SourceScan, resp.Source)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, fake.calls)

	fake.healthy = false
	resp = svc.Search(Query{SessionID: "s1", Text: "parks"}, sampleRecords())
	assert.Equal(t, SourceScan, resp.Source)
	assert.Equal(t, 1, fake.calls)
}
