package site

import "github.com/guiyumin/vskip/internal/core/dom"

// NextSelectors is the generic, ordered list of "next episode" controls.
var NextSelectors = []string{
	".bpx-player-ctrl-next",
	".squirtle-video-next",
	".bilibili-player-video-btn-next",
	".iqp-btn-next",
	".txp_btn_next",
	".control-next-video",
	".ytp-next-button",
	"[class*='next-btn']",
	"[class*='btn-next']",
	"button[aria-label*='Next']",
	"button[aria-label*='下一集']",
}

func builtins() []binding {
	bilibili := Strategy{
		Name: "哔哩哔哩",
		Clean: suffixCleaner(
			`[-_]番剧[-_].*$`,
			`[-_]?(哔哩哔哩|bilibili).*$`,
		),
		Parser:        bilibiliParser,
		NextSelectors: []string{".bpx-player-ctrl-next", ".squirtle-video-next"},
	}
	youtube := Strategy{
		Name:  "YouTube",
		Clean: suffixCleaner(`\s*-\s*YouTube\s*$`),
	}

	return []binding{
		{"bilibili.com", bilibili},
		{"b23.tv", bilibili},
		{"iqiyi.com", Strategy{
			Name:  "爱奇艺",
			Clean: suffixCleaner(`[-_](电视剧|动漫|综艺|电影)[-_].*$`, `[-_]爱奇艺.*$`),
		}},
		{"v.qq.com", Strategy{
			Name:  "腾讯视频",
			Clean: suffixCleaner(`_高清.*$`, `[-_]腾讯视频.*$`),
		}},
		{"youku.com", Strategy{
			Name:  "优酷",
			Clean: suffixCleaner(`[—\-_]在线播放.*$`, `[—\-_]优酷.*$`),
		}},
		{"mgtv.com", Strategy{
			Name:  "芒果TV",
			Clean: suffixCleaner(`[-_]芒果TV.*$`),
		}},
		{"youtube.com", youtube},
		{"youtu.be", youtube},
		{"netflix.com", Strategy{
			Name:  "Netflix",
			Clean: suffixCleaner(`\s*\|\s*Netflix.*$`),
		}},
	}
}

// bilibiliParser reads the bangumi media title and the highlighted episode,
// or the part list of a multi-part upload.
func bilibiliParser(doc dom.Document) *Parsed {
	series := firstText(doc,
		"[class*='mediainfo_mediaTitle']",
		".media-title",
		".video-pod__header .header-top .left .title",
	)
	if series == "" {
		return nil
	}
	episode := firstText(doc,
		"[class*='numberListItem_select']",
		".ep-item.cursor",
		".video-pod__item.active .title-txt",
	)
	return &Parsed{Series: series, Episode: episode}
}
