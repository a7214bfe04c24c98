package media

// Resample 对 16-bit 小端单声道 PCM 做线性插值重采样。
// fromRate == toRate 时原样返回。
func Resample(audioData []byte, fromRate, toRate int) []byte {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return audioData
	}

	ratio := float64(toRate) / float64(fromRate)
	newLength := int(float64(len(audioData)) * ratio)
	if newLength%2 != 0 {
		newLength++
	}

	resampled := make([]byte, newLength)

	for i := 0; i < newLength/2; i++ {
		srcPos := float64(i) / ratio
		srcIdx := int(srcPos) * 2

		if srcIdx+3 < len(audioData) {
			// 线性插值
			frac := srcPos - float64(int(srcPos))

			sample1 := int16(audioData[srcIdx]) | (int16(audioData[srcIdx+1]) << 8)
			sample2 := int16(audioData[srcIdx+2]) | (int16(audioData[srcIdx+3]) << 8)

			interpolated := int16(float64(sample1)*(1-frac) + float64(sample2)*frac)

			resampled[i*2] = byte(interpolated & 0xFF)
			resampled[i*2+1] = byte((interpolated >> 8) & 0xFF)
		} else if srcIdx+1 < len(audioData) {
			// 边界情况：直接复制
			resampled[i*2] = audioData[srcIdx]
			resampled[i*2+1] = audioData[srcIdx+1]
		}
	}

	return resampled
}
