package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyReadSmallIsForeground(t *testing.T) {
	assert.Equal(t, LaneReadForeground, ClassifyRead(1024))
	assert.Equal(t, LaneReadForeground, ClassifyRead(BulkReadThreshold))
}

func TestClassifyReadLargeIsBulk(t *testing.T) {
	assert.Equal(t, LaneBulk, ClassifyRead(BulkReadThreshold+1))
	assert.Equal(t, LaneBulk, ClassifyRead(10*1024*1024))
}

func TestClassifyMetadataAndStructuralAndControl(t *testing.T) {
	assert.Equal(t, LaneMetadata, ClassifyMetadata())
	assert.Equal(t, LaneWriteStructural, ClassifyStructural())
	assert.Equal(t, LaneControl, ClassifyControl())
}

func TestLaneStringNames(t *testing.T) {
	assert.Equal(t, "L0-Control", LaneControl.String())
	assert.Equal(t, "L4-Bulk", LaneBulk.String())
}

func TestDefaultLaneReservations(t *testing.T) {
	r := DefaultLaneReservations()
	assert.Equal(t, 1, r.MetadataMin)
	assert.Equal(t, 2, r.WriteStructuralMin)
}
