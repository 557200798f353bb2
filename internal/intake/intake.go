// Package intake parses the external multipart notification contract
// (spec.md §6) into model.TrackNotification, the unit the coalescer
// dispatches on.
package intake

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmsh/trackfusion/internal/model"
)

// faceJSON mirrors the face-track JSON body (spec.md §6).
type faceJSON struct {
	ID     string `json:"id"`
	Index  int    `json:"index"`
	Source string `json:"source"`

	Background *struct {
		ImageFile string    `json:"image_file"`
		Rect      model.Rect `json:"rect"`
		Width     int       `json:"width"`
		Height    int       `json:"height"`
	} `json:"background"`

	Faces []struct {
		AlignedFile string  `json:"aligned_file"`
		DisplayFile string  `json:"display_file"`
		FeatureFile string  `json:"feature_file"`
		Quality     float64 `json:"quality"`
	} `json:"faces"`

	Props *struct {
		Age           int `json:"age"`
		Gender        int `json:"gender"`
		Glasses       int `json:"glasses"`
		MoveDirection int `json:"move_direction"`
	} `json:"props"`
}

// vehicleJSON mirrors the vehicle-track JSON body (spec.md §6).
type vehicleJSON struct {
	ID     string `json:"id"`
	Source string `json:"source"`

	Background *struct {
		ImageFile   string    `json:"image_file"`
		VideoWidth  int       `json:"video_width"`
		VideoHeight int       `json:"video_height"`
		Width       int       `json:"width"`
		Height      int       `json:"height"`
		Rect        model.Rect `json:"rect"`
	} `json:"background"`

	Vehicles []struct {
		ImageFile string `json:"image_file"`
	} `json:"vehicles"`

	PlateInfo *struct {
		ImageFile  string `json:"image_file"`
		BinaryFile string `json:"binary_file"`
		Text       string `json:"text"`
		Type       struct {
			Value string  `json:"value"`
			Conf  float64 `json:"conf"`
		} `json:"type"`
	} `json:"plate_info"`

	Props *struct {
		Color         []valuedScore `json:"color"`
		Brand         []valuedScore `json:"brand"`
		TopSeries     []valuedScore `json:"top_series"`
		Series        []valuedScore `json:"series"`
		TopType       []valuedScore `json:"top_type"`
		MidType       []valuedScore `json:"mid_type"`
		Direction     []valuedScore `json:"direction"`
		MoveDirection int           `json:"move_direction"`
	} `json:"props"`
}

// valuedScore is the `{value, score}` shape every vehicle-props array
// entry uses; only the first (highest-ranked) entry is consumed, per
// model.VehicleProps carrying plain strings rather than ranked lists.
type valuedScore struct {
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

func topValue(vs []valuedScore) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0].Value
}

// lookupFile resolves a named file part, failing when the JSON references
// a part the multipart request didn't actually carry (spec.md §4.A:
// "fails with BadRequest if a referenced part is missing").
func lookupFile(files map[string][]byte, name string) ([]byte, error) {
	if name == "" {
		return nil, nil
	}
	b, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("referenced file part %q not present in request", name)
	}
	return b, nil
}

// ParseFaceTrack decodes a facetrack JSON body plus its referenced file
// parts into a TrackNotification.
func ParseFaceTrack(jsonBytes []byte, files map[string][]byte, receivedAt time.Time) (*model.TrackNotification, error) {
	var in faceJSON
	if err := json.Unmarshal(jsonBytes, &in); err != nil {
		return nil, fmt.Errorf("decode facetrack json: %w", err)
	}
	if in.ID == "" {
		return nil, fmt.Errorf("facetrack json missing id")
	}

	n := &model.TrackNotification{
		ID:         in.ID,
		Kind:       model.KindFace,
		SourceID:   in.Source,
		CapturedAt: receivedAt,
	}

	if in.Background != nil {
		img, err := lookupFile(files, in.Background.ImageFile)
		if err != nil {
			return nil, err
		}
		n.Background = &model.Background{
			Image: img, Width: in.Background.Width, Height: in.Background.Height,
			Rect: in.Background.Rect,
		}
	}

	for _, f := range in.Faces {
		small, err := lookupFile(files, f.AlignedFile)
		if err != nil {
			return nil, err
		}
		large, err := lookupFile(files, f.DisplayFile)
		if err != nil {
			return nil, err
		}
		featureRaw, err := lookupFile(files, f.FeatureFile)
		if err != nil {
			return nil, err
		}
		var feature string
		if len(featureRaw) > 0 {
			feature = base64.StdEncoding.EncodeToString(featureRaw)
		}
		n.Detections = append(n.Detections, model.Detection{
			Quality:    f.Quality,
			SmallImage: small,
			LargeImage: large,
			Feature:    feature,
		})
	}

	if in.Props != nil {
		n.FaceProps = &model.FaceProps{
			Age: in.Props.Age, Gender: in.Props.Gender,
			Glasses: in.Props.Glasses, MoveDirection: in.Props.MoveDirection,
		}
	}

	return n, nil
}

// ParseVehicleTrack decodes a vehicletrack JSON body plus its referenced
// file parts into a TrackNotification.
func ParseVehicleTrack(jsonBytes []byte, files map[string][]byte, receivedAt time.Time) (*model.TrackNotification, error) {
	var in vehicleJSON
	if err := json.Unmarshal(jsonBytes, &in); err != nil {
		return nil, fmt.Errorf("decode vehicletrack json: %w", err)
	}
	if in.ID == "" {
		return nil, fmt.Errorf("vehicletrack json missing id")
	}

	n := &model.TrackNotification{
		ID:         in.ID,
		Kind:       model.KindVehicle,
		SourceID:   in.Source,
		CapturedAt: receivedAt,
	}

	if in.Background != nil {
		img, err := lookupFile(files, in.Background.ImageFile)
		if err != nil {
			return nil, err
		}
		n.Background = &model.Background{
			Image: img, Width: in.Background.Width, Height: in.Background.Height,
			Rect: in.Background.Rect,
		}
	}

	for _, v := range in.Vehicles {
		small, err := lookupFile(files, v.ImageFile)
		if err != nil {
			return nil, err
		}
		n.Detections = append(n.Detections, model.Detection{SmallImage: small})
	}

	if in.PlateInfo != nil {
		plateImg, err := lookupFile(files, in.PlateInfo.ImageFile)
		if err != nil {
			return nil, err
		}
		plateBin, err := lookupFile(files, in.PlateInfo.BinaryFile)
		if err != nil {
			return nil, err
		}
		n.PlateInfo = &model.PlateInfo{
			Text:        model.NormalizePlate(in.PlateInfo.Text),
			Type:        in.PlateInfo.Type.Value,
			ImageFile:   in.PlateInfo.ImageFile,
			BinaryFile:  in.PlateInfo.BinaryFile,
			PlateImage:  plateImg,
			PlateBinary: plateBin,
		}
	}

	if in.Props != nil {
		n.VehicleProps = &model.VehicleProps{
			Color:         topValue(in.Props.Color),
			Brand:         topValue(in.Props.Brand),
			TopSeries:     topValue(in.Props.TopSeries),
			Series:        topValue(in.Props.Series),
			TopType:       topValue(in.Props.TopType),
			MidType:       topValue(in.Props.MidType),
			Direction:     topValue(in.Props.Direction),
			MoveDirection: in.Props.MoveDirection,
		}
	}

	return n, nil
}
