package config

// DefaultVocabulary is the Arabic food vocabulary. Bare and article-prefixed
// forms are separate terms. Entries containing a space never match a single
// whitespace token and stay as all-zero columns.
var DefaultVocabulary = []string{
	// Staples
	"طحين", "سكر", "زيت", "رز", "خبز", "خميرة", "دقيق", "ملح", "عدس", "فول",
	"حمص", "تمر", "فستق", "لبن", "جبنة", "بيض", "شاي", "قهوة", "معكرونة", "مكرونة",
	"عسل", "سمك", "لحم", "دجاج", "برغل", "صلصة", "حلاوة", "السيرج", "سيرج",
	"الطحين", "السكر", "الزيت", "الرز", "الخبز", "الخميرة", "الدقيق", "الملح", "العدس", "الفول",
	"الحمص", "التمر", "الفستق", "اللبن", "الجبنة", "البيض", "الشاي", "القهوة", "المعكرونة", "المكرونة",
	"العسل", "السمك", "اللحم", "الدجاج",
	// Vegetables
	"بطاطا", "بطاطس", "بندورة", "طماطم", "خيار", "فلفل", "باذنجان", "كوسا", "جزر", "بصل",
	"ثوم", "ملفوف", "زهرة", "فاصوليا", "بازيلاء", "سبانخ", "خس", "جرجير", "فجل", "قرع",
	"فطر", "ورق عنب", "فول اخضر", "فول أخضر", "شمندر", "كرفس", "نعنع", "بقدونس", "كزبرة", "شبت",
	// Fruits
	"تفاح", "موز", "برتقال", "ليمون", "عنب", "رمان", "خوخ", "مشمش", "دراق", "كمثرى",
	"اجاص", "تين", "بطيخ", "شمام", "فراولة", "كيوي", "مانجو", "مانغا", "جوافة", "اناناس",
	"بابايا", "كرز", "توت", "تمر هندي", "قشطة", "جريب فروت", "يوسفي", "نكتارين", "برقوق", "جوز الهند",
}
