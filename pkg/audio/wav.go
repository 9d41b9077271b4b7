package audio

import "encoding/binary"

// WAVEnvelope concatenates the PCM payloads of frames, in slice order, into a
// single mono 16-bit WAV container at the given sample rate. The realtime
// endpoint expects each input_audio_buffer.append payload to be a complete
// WAV file rather than bare PCM.
//
// Frame order is preserved exactly; the envelope is never split or reordered
// after formation.
func WAVEnvelope(frames []Frame, sampleRate int) []byte {
	var pcmLen int
	for _, f := range frames {
		pcmLen += len(f.PCM)
	}

	const headerLen = 44
	buf := make([]byte, headerLen, headerLen+pcmLen)

	// RIFF chunk descriptor.
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+pcmLen))
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk: PCM, mono, 16-bit.
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	// data sub-chunk.
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(pcmLen))

	for _, f := range frames {
		buf = append(buf, f.PCM...)
	}
	return buf
}
