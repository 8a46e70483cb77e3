package fusion

import (
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/OneBusAway/go-gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

// buildFeed marshals a minimal TripUpdate feed the way the upstream encodes
// it, so the test exercises the real binary decode path.
func buildFeed(t *testing.T, timestamp time.Time, tripID string, stopID string, delaySec int32) []byte {
	t.Helper()

	feed := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(timestamp.Unix())),
		},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: proto.String("entity-1"),
				TripUpdate: &gtfsrtpb.TripUpdate{
					Trip: &gtfsrtpb.TripDescriptor{
						TripId: proto.String(tripID),
					},
					StopTimeUpdate: []*gtfsrtpb.TripUpdate_StopTimeUpdate{
						{
							StopId: proto.String(stopID),
							Arrival: &gtfsrtpb.TripUpdate_StopTimeEvent{
								Delay: proto.Int32(delaySec),
							},
						},
					},
				},
			},
		},
	}

	data, err := proto.Marshal(feed)
	require.NoError(t, err)
	return data
}

func TestDecodeFeedAndFuse(t *testing.T) {
	trip := standardTrip()
	fuser, cal := newTestFuser(t, trip)

	now := time.Date(2025, 1, 15, 8, 1, 0, 0, cal.Location())
	data := buildFeed(t, now.Add(-10*time.Second), "4200400G", "S2", 120)

	rt, err := gtfs.ParseRealtime(data, &gtfs.ParseRealtimeOptions{})
	require.NoError(t, err)
	require.Len(t, rt.Trips, 1)

	set := fuser.Fuse(rt, now)
	offsets := set.Offsets(trip.ID)
	require.NotNil(t, offsets, "trip decoded from the wire must match the timetable")
	assert.Equal(t, 120, offsets.OffsetAt(1))
	assert.Equal(t, 120, offsets.OffsetAt(3), "forward fill reaches the last stop")
}

func TestDecodeMalformedFeedFails(t *testing.T) {
	_, err := gtfs.ParseRealtime([]byte("this is not protobuf"), &gtfs.ParseRealtimeOptions{})
	assert.Error(t, err)
}
