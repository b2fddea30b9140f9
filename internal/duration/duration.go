// Package duration は勤務時間の導出計算を提供する。
// すべて純粋関数であり、時間は時間単位のfloat64で扱う。
// 分単位への丸めは表示層の責務で、保存時には行わない。
package duration

import (
	"time"

	"github.com/hitoshi/timecard/internal/model"
)

// ElapsedHours はstartからendまでの経過時間を時間単位で返す。
// endがstartより前の場合はInvalidRangeエラーを返す。
func ElapsedHours(start, end time.Time) (float64, error) {
	if end.Before(start) {
		return 0, model.NewInvalidRangeError()
	}
	return end.Sub(start).Hours(), nil
}

// NetDuration は総勤務時間から休憩時間を引いた正味勤務時間を返す。
// 休憩データが不整合でも負の値にはならず0でクランプする。
// クランプはデータ消失ではなく防御的ポリシーであり、
// breakTotal > total の場合は呼び出し側がログに記録する。
func NetDuration(total, breakTotal float64) float64 {
	net := total - breakTotal
	if net < 0 {
		return 0
	}
	return net
}

// SumBreaks は休憩時間の合計を時間単位で返す。
// 未終了の休憩（EndTime == nil）はDurationが未確定のため0として扱う。
func SumBreaks(breaks []*model.Break) float64 {
	var sum float64
	for _, b := range breaks {
		if b.Duration != nil {
			sum += *b.Duration
		}
	}
	return sum
}
