package room

// DefaultThemes is used when the config file does not list themes.
var DefaultThemes = Themes{
	Easy: []string{
		"ネコ", "イヌ", "ペンギン", "サメ", "クジラ", "ドラゴン", "恐竜",
		"ウサギ", "パンダ", "ライオン", "ゾウ", "キリン", "カメ", "タコ",
		"フラミンゴ", "ハムスター", "カエル", "チョウ", "コウモリ", "ユニコーン",
		"ピザ", "ケーキ", "ラーメン", "お寿司", "ハンバーガー", "アイスクリーム",
		"おにぎり", "たこ焼き", "パンケーキ", "ドーナツ", "フライドチキン", "カレーライス",
		"ロケット", "UFO", "自転車", "飛行機", "新幹線", "潜水艦", "ヘリコプター",
		"お城", "東京タワー", "灯台", "観覧車", "ジェットコースター",
		"富士山", "虹", "ヒマワリ", "桜", "流れ星", "太陽", "月",
		"雪だるま", "火山", "滝", "サボテン", "クローバー",
		"忍者", "宇宙飛行士", "海賊", "魔法使い", "ロボット", "王様",
		"サンタクロース", "スーパーヒーロー", "人魚", "天使",
		"ギター", "テレビ", "カメラ", "傘", "メガネ", "王冠",
		"宝箱", "地球儀", "風船", "花火", "ダイヤモンド", "時計",
	},
	Hard: []string{
		"ネコがピアノを弾いている",
		"恐竜が隕石から逃げている",
		"忍者がピザを配達している",
		"ロボットが犬の散歩をしている",
		"ペンギンがサーフィンをしている",
		"魔法使いが料理をしている",
		"ドラゴンがアイスクリームを食べている",
		"サメが自転車に乗っている",
		"宇宙飛行士がラーメンを食べている",
		"パンダがスケボをしている",
		"海賊が宝箱を掘り当てている",
		"ユニコーンが虹の上を走っている",
		"ライオンが歯医者さんに行っている",
		"タコが寿司屋で働いている",
		"カエルが王様になっている",
		"放課後の学校",
		"深夜のコンビニ",
		"雨の日の遊園地",
		"宇宙から見た地球",
		"無人島のキャンプ",
		"深海のパーティー",
		"雲の上のお城",
		"月面の運動会",
		"ジャングルの遊園地",
		"火星のカフェ",
		"雪山の温泉",
		"水中の図書館",
		"サンタがビーチで日光浴している",
		"ゴリラがバレエを踊っている",
		"猫が会議を開いている",
		"タコが富士山に登っている",
		"ペンギンが砂漠で迷子になっている",
		"恋するロボット",
		"寝坊するドラゴン",
		"踊るお寿司",
		"筋トレする雪だるま",
		"プロポーズするカエル",
	},
}
