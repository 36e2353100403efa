package tts_test

import (
	"testing"

	"github.com/MrWong99/radiodj/pkg/provider/tts"
)

func TestEncodeParseWAV(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	wav := tts.EncodeWAV(pcm, 24000, 1)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}

	info, err := tts.ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if info.SampleRate != 24000 || info.Channels != 1 || info.BitsPerSample != 16 {
		t.Errorf("info = %+v", info)
	}
	if info.DataOffset != 44 || info.DataSize != len(pcm) {
		t.Errorf("data offset/size = %d/%d", info.DataOffset, info.DataSize)
	}
}

func TestParseWAV_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string][]byte{
		"empty":   nil,
		"not wav": []byte("ID3\x03 definitely an mp3 file"),
		"no data": []byte("RIFF\x04\x00\x00\x00WAVE"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := tts.ParseWAV(data); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFormatExt(t *testing.T) {
	t.Parallel()

	if got := tts.FormatMP3.Ext(); got != "mp3" {
		t.Errorf("mp3 ext = %q", got)
	}
	if got := tts.Format("").Ext(); got != "bin" {
		t.Errorf("empty ext = %q", got)
	}
}
