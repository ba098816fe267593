package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/himanishpuri/audiofp/internal/fperrors"
)

// wavFormat holds the fmt-chunk fields of a RIFF/WAVE file.
type wavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
}

type wavData struct {
	Format wavFormat
	Data   []byte
}

func readRIFFHeader(f *os.File) error {
	var riff, wave [4]byte
	var fileSize uint32
	if err := binary.Read(f, binary.LittleEndian, &riff); err != nil {
		return fmt.Errorf("reading RIFF header: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &fileSize); err != nil {
		return fmt.Errorf("reading RIFF size: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &wave); err != nil {
		return fmt.Errorf("reading WAVE id: %w", err)
	}
	if string(riff[:]) != "RIFF" || string(wave[:]) != "WAVE" {
		return errors.New("not a WAV/RIFF file")
	}
	return nil
}

func readFmtChunk(f *os.File, chunkSize uint32) (*wavFormat, error) {
	var audioFormat, numChannels, bitsPerSample uint16
	var sampleRate, byteRate uint32
	var blockAlign uint16

	if err := binary.Read(f, binary.LittleEndian, &audioFormat); err != nil {
		return nil, fmt.Errorf("reading fmt audioFormat: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &numChannels); err != nil {
		return nil, fmt.Errorf("reading fmt numChannels: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &sampleRate); err != nil {
		return nil, fmt.Errorf("reading fmt sampleRate: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &byteRate); err != nil {
		return nil, fmt.Errorf("reading fmt byteRate: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &blockAlign); err != nil {
		return nil, fmt.Errorf("reading fmt blockAlign: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &bitsPerSample); err != nil {
		return nil, fmt.Errorf("reading fmt bitsPerSample: %w", err)
	}

	if remaining := int(chunkSize) - 16; remaining > 0 {
		if _, err := f.Seek(int64(remaining), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("seeking past fmt extras: %w", err)
		}
	}

	return &wavFormat{
		AudioFormat:   audioFormat,
		NumChannels:   numChannels,
		SampleRate:    sampleRate,
		BitsPerSample: bitsPerSample,
	}, nil
}

func scanWavChunks(f *os.File) (*wavData, error) {
	var format wavFormat
	var dataChunk []byte
	fmtFound, dataFound := false, false

	for {
		var chunkID [4]byte
		var chunkSize uint32

		if err := binary.Read(f, binary.LittleEndian, &chunkID); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading chunk header: %w", err)
		}
		if err := binary.Read(f, binary.LittleEndian, &chunkSize); err != nil {
			return nil, fmt.Errorf("reading chunk size: %w", err)
		}

		switch string(chunkID[:]) {
		case "fmt ":
			fm, err := readFmtChunk(f, chunkSize)
			if err != nil {
				return nil, err
			}
			format = *fm
			fmtFound = true
		case "data":
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, buf); err != nil {
				return nil, fmt.Errorf("reading data chunk: %w", err)
			}
			dataChunk = buf
			dataFound = true
		default:
			if _, err := f.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("skipping chunk %s: %w", string(chunkID[:]), err)
			}
		}

		if chunkSize%2 == 1 {
			if _, err := f.Seek(1, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("seeking pad byte: %w", err)
			}
		}
		if fmtFound && dataFound {
			break
		}
	}

	if !fmtFound {
		return nil, errors.New("fmt chunk not found")
	}
	if !dataFound {
		return nil, errors.New("data chunk not found")
	}
	return &wavData{Format: format, Data: dataChunk}, nil
}

func convertToInt16Samples(data []byte) ([]int16, error) {
	out := make([]int16, len(data)/2)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("decoding PCM samples: %w", err)
	}
	return out, nil
}

func convertToMonoFloat32(samples []int16, numChannels uint16) ([]float32, error) {
	const scale = 1.0 / 32768.0
	switch numChannels {
	case 1:
		out := make([]float32, len(samples))
		for i, s := range samples {
			out[i] = float32(s) * scale
		}
		return out, nil
	case 2:
		frames := len(samples) / 2
		out := make([]float32, frames)
		for i := 0; i < frames; i++ {
			l := float32(samples[2*i]) * scale
			r := float32(samples[2*i+1]) * scale
			out[i] = (l + r) * 0.5
		}
		return out, nil
	default:
		return nil, errors.New("unsupported channel count: only mono/stereo supported")
	}
}

// WAVDecoder reads 16-bit PCM WAV files produced upstream by ffmpeg (see
// ConvertToMonoWAV) and implements Decoder. It does not assume a canonical
// 44-byte header and walks chunks explicitly, so odd LIST/INFO/junk chunks
// from real encoders don't break it.
type WAVDecoder struct{}

func NewWAVDecoder() *WAVDecoder { return &WAVDecoder{} }

func (d *WAVDecoder) Decode(ctx context.Context, path string) ([]float32, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", fperrors.ErrDecodeFailed, err)
	}
	defer f.Close()

	if err := readRIFFHeader(f); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", fperrors.ErrUnsupportedFormat, err)
	}

	wd, err := scanWavChunks(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", fperrors.ErrDecodeFailed, err)
	}

	if wd.Format.AudioFormat != 1 {
		return nil, 0, 0, fmt.Errorf("%w: only PCM supported", fperrors.ErrUnsupportedFormat)
	}
	if wd.Format.BitsPerSample != 16 {
		return nil, 0, 0, fmt.Errorf("%w: only 16-bit PCM supported", fperrors.ErrUnsupportedFormat)
	}
	if len(wd.Data) == 0 {
		return nil, 0, 0, fperrors.ErrNoAudioStream
	}

	int16Samples, err := convertToInt16Samples(wd.Data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", fperrors.ErrDecodeFailed, err)
	}

	mono, err := convertToMonoFloat32(int16Samples, wd.Format.NumChannels)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", fperrors.ErrUnsupportedFormat, err)
	}

	return mono, int(wd.Format.SampleRate), 1, nil
}
