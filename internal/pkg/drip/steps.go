package drip

import (
	"fmt"
	"time"

	"github.com/archiprisma/memberops/app/models"
)

// Step is one mail in the onboarding sequence. DelayDays counts from the
// lead's join date.
type Step struct {
	Number    int
	ID        string
	DelayDays int
	Subject   string
	Body      func(name, unsubscribeURL string) string
}

// Steps is the full sequence, in send order.
var Steps = []Step{
	{
		Number: 1, ID: "welcome", DelayDays: 0,
		Subject: "ご登録ありがとうございます | スタートガイド",
		Body: func(name, unsub string) string {
			return fmt.Sprintf(`<p>%sさん</p>
<p>ご登録ありがとうございます。まずはスタートガイドをご覧ください。</p>
<p>コミュニティで毎週の実務相談会も開催しています。</p>%s`, displayName(name), footer(unsub))
		},
	},
	{
		Number: 2, ID: "crisis", DelayDays: 2,
		Subject: "設計事務所の経営、このままで大丈夫ですか",
		Body: func(name, unsub string) string {
			return fmt.Sprintf(`<p>%sさん</p>
<p>省エネ基準の適合義務化で、対応できない事務所は案件を失い始めています。</p>
<p>いま何から手を付けるべきかを整理した資料を共有します。</p>%s`, displayName(name), footer(unsub))
		},
	},
	{
		Number: 3, ID: "energy", DelayDays: 5,
		Subject: "省エネ計算を外注から内製に切り替えた事務所の話",
		Body: func(name, unsub string) string {
			return fmt.Sprintf(`<p>%sさん</p>
<p>外注費が月20万円を超えていた事務所が、内製化で利益率を改善した事例です。</p>%s`, displayName(name), footer(unsub))
		},
	},
	{
		Number: 4, ID: "kouzou", DelayDays: 8,
		Subject: "構造計算まで自社で完結できると何が変わるか",
		Body: func(name, unsub string) string {
			return fmt.Sprintf(`<p>%sさん</p>
<p>4号特例の縮小で構造計算の需要が急増しています。対応範囲を広げる手順をまとめました。</p>%s`, displayName(name), footer(unsub))
		},
	},
	{
		Number: 5, ID: "social_proof", DelayDays: 12,
		Subject: "会員の声:月3件の省エネ計算を自社処理できるように",
		Body: func(name, unsub string) string {
			return fmt.Sprintf(`<p>%sさん</p>
<p>導入3ヶ月で省エネ計算を完全内製化した会員の体験談を紹介します。</p>%s`, displayName(name), footer(unsub))
		},
	},
	{
		Number: 6, ID: "offer", DelayDays: 16,
		Subject: "今月入会の方への特典のご案内",
		Body: func(name, unsub string) string {
			return fmt.Sprintf(`<p>%sさん</p>
<p>初月割引と個別オンボーディングをご用意しました。この機会にぜひご検討ください。</p>%s`, displayName(name), footer(unsub))
		},
	},
	{
		Number: 7, ID: "final", DelayDays: 21,
		Subject: "最後のご案内です",
		Body: func(name, unsub string) string {
			return fmt.Sprintf(`<p>%sさん</p>
<p>このシリーズは今回で最後です。ご質問があればこのメールに返信してください。</p>%s`, displayName(name), footer(unsub))
		},
	},
}

// NextDueStep returns the first step that is both unsent and past its
// delay, or false when nothing is due.
func NextDueStep(lead *models.Lead, now time.Time) (Step, bool) {
	for _, step := range Steps {
		if lead.StepDone(step.Number) {
			continue
		}
		if now.Before(lead.JoinedAt.Add(time.Duration(step.DelayDays) * 24 * time.Hour)) {
			// Steps are ordered; nothing later is due either.
			return Step{}, false
		}
		return step, true
	}
	return Step{}, false
}

func displayName(name string) string {
	if name == "" {
		return "ご担当者"
	}
	return name
}

func footer(unsubscribeURL string) string {
	return fmt.Sprintf(`<hr><p style="font-size:12px;color:#888">配信停止は<a href="%s">こちら</a></p>`, unsubscribeURL)
}
