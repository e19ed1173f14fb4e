package model

// SealLabel метка RSA-OAEP для ключа запечатанного отчёта
const SealLabel = "privacy-analytics/report-key"

// MinSealKeyBits минимальная длина RSA ключа хелпера
const MinSealKeyBits = 2048

// Report тело отчёта для лидера агрегации
type Report struct {
	ReportID string `json:"report_id"`
	TaskID   string `json:"task_id"`
	Time     int64  `json:"time"`
	Helper   string `json:"helper"`
	// вектор входа VDAF: [0|1] для count, one-hot длины Length для histogram
	Measurement []uint64 `json:"measurement,omitempty"`
	// если задан ключ - вектор зашифрован и лежит здесь: base64url(ключ).base64url(nonce||шифртекст),
	// task_id связан с шифртекстом как additional data
	Sealed string `json:"sealed,omitempty"`
}
