package grpcclient

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/trnscrb/trnscrb/internal/transcript"
)

// decodeSegments reads {"segments": [{"start", "end", "text"}]}.
func decodeSegments(s *structpb.Struct) []transcript.Segment {
	items := s.GetFields()["segments"].GetListValue().GetValues()
	out := make([]transcript.Segment, 0, len(items))
	for _, v := range items {
		f := v.GetStructValue().GetFields()
		out = append(out, transcript.Segment{
			Start: f["start"].GetNumberValue(),
			End:   f["end"].GetNumberValue(),
			Text:  f["text"].GetStringValue(),
		})
	}
	return out
}

// decodeTurns reads {"turns": [{"start", "end", "speaker"}]}.
func decodeTurns(s *structpb.Struct) []transcript.Turn {
	items := s.GetFields()["turns"].GetListValue().GetValues()
	out := make([]transcript.Turn, 0, len(items))
	for _, v := range items {
		f := v.GetStructValue().GetFields()
		speaker := f["speaker"].GetStringValue()
		if speaker == "" {
			continue
		}
		out = append(out, transcript.Turn{
			Start:   f["start"].GetNumberValue(),
			End:     f["end"].GetNumberValue(),
			Speaker: speaker,
		})
	}
	return out
}
