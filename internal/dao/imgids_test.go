package dao

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/twmsh/trackfusion/internal/model"
)

func TestEncodeImgIDsRoundTrip(t *testing.T) {
	dets := []model.Detection{
		{Index: 1, Quality: 0.9},
		{Index: 2, Quality: 0.75},
	}
	encoded := EncodeImgIDs(dets)
	require.Equal(t, "1:0.9,2:0.75", encoded)

	decoded, err := DecodeImgIDs(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	require.Equal(t, "1", decoded[0].FaceID)
	require.InDelta(t, 0.9, decoded[0].Quality, 1e-9)
	require.Equal(t, "2", decoded[1].FaceID)
	require.InDelta(t, 0.75, decoded[1].Quality, 1e-9)
}

func TestDecodeImgIDsEmpty(t *testing.T) {
	decoded, err := DecodeImgIDs("")
	require.NoError(t, err)
	require.Nil(t, decoded)
}

func TestDecodeImgIDsMalformed(t *testing.T) {
	_, err := DecodeImgIDs("1-0.9")
	require.Error(t, err)
}

func TestEncodeVehicleImgIDsAlwaysUsesLiteralQuality(t *testing.T) {
	dets := []model.Detection{
		{Index: 1, Quality: 0}, // vehicle detections never set Quality
		{Index: 2, Quality: 0},
	}
	require.Equal(t, "1:1.0,2:1.0", EncodeVehicleImgIDs(dets))
}
