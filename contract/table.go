package contract

// 内置品种表：上期所、大商所、郑商所、中金所、上期能源。
var builtin = []Spec{
	// SHFE
	{Product: "cu", Exchange: "SHFE", Name: "铜", Multiplier: 5, PriceTick: 10},
	{Product: "al", Exchange: "SHFE", Name: "铝", Multiplier: 5, PriceTick: 5},
	{Product: "zn", Exchange: "SHFE", Name: "锌", Multiplier: 5, PriceTick: 5},
	{Product: "pb", Exchange: "SHFE", Name: "铅", Multiplier: 5, PriceTick: 5},
	{Product: "ni", Exchange: "SHFE", Name: "镍", Multiplier: 1, PriceTick: 10},
	{Product: "sn", Exchange: "SHFE", Name: "锡", Multiplier: 1, PriceTick: 10},
	{Product: "au", Exchange: "SHFE", Name: "黄金", Multiplier: 1000, PriceTick: 0.05},
	{Product: "ag", Exchange: "SHFE", Name: "白银", Multiplier: 15, PriceTick: 1},
	{Product: "rb", Exchange: "SHFE", Name: "螺纹钢", Multiplier: 10, PriceTick: 1},
	{Product: "hc", Exchange: "SHFE", Name: "热轧卷板", Multiplier: 10, PriceTick: 1},
	{Product: "ss", Exchange: "SHFE", Name: "不锈钢", Multiplier: 5, PriceTick: 5},
	{Product: "fu", Exchange: "SHFE", Name: "燃料油", Multiplier: 10, PriceTick: 1},
	{Product: "bu", Exchange: "SHFE", Name: "沥青", Multiplier: 10, PriceTick: 2},
	{Product: "ru", Exchange: "SHFE", Name: "天然橡胶", Multiplier: 10, PriceTick: 5},
	{Product: "sp", Exchange: "SHFE", Name: "纸浆", Multiplier: 10, PriceTick: 2},

	// DCE
	{Product: "a", Exchange: "DCE", Name: "豆一", Multiplier: 10, PriceTick: 1},
	{Product: "b", Exchange: "DCE", Name: "豆二", Multiplier: 10, PriceTick: 1},
	{Product: "m", Exchange: "DCE", Name: "豆粕", Multiplier: 10, PriceTick: 1},
	{Product: "y", Exchange: "DCE", Name: "豆油", Multiplier: 10, PriceTick: 2},
	{Product: "c", Exchange: "DCE", Name: "玉米", Multiplier: 10, PriceTick: 1},
	{Product: "cs", Exchange: "DCE", Name: "玉米淀粉", Multiplier: 10, PriceTick: 1},
	{Product: "l", Exchange: "DCE", Name: "塑料", Multiplier: 5, PriceTick: 5},
	{Product: "v", Exchange: "DCE", Name: "PVC", Multiplier: 5, PriceTick: 5},
	{Product: "pp", Exchange: "DCE", Name: "聚丙烯", Multiplier: 5, PriceTick: 1},
	{Product: "j", Exchange: "DCE", Name: "焦炭", Multiplier: 100, PriceTick: 0.5},
	{Product: "jm", Exchange: "DCE", Name: "焦煤", Multiplier: 60, PriceTick: 0.5},
	{Product: "i", Exchange: "DCE", Name: "铁矿石", Multiplier: 100, PriceTick: 0.5},
	{Product: "jd", Exchange: "DCE", Name: "鸡蛋", Multiplier: 10, PriceTick: 1},
	{Product: "fb", Exchange: "DCE", Name: "纤维板", Multiplier: 10, PriceTick: 0.5},
	{Product: "bb", Exchange: "DCE", Name: "胶合板", Multiplier: 10, PriceTick: 0.5},
	{Product: "pg", Exchange: "DCE", Name: "液化石油气", Multiplier: 20, PriceTick: 1},
	{Product: "lh", Exchange: "DCE", Name: "生猪", Multiplier: 16, PriceTick: 5},
	{Product: "eb", Exchange: "DCE", Name: "苯乙烯", Multiplier: 5, PriceTick: 1},
	{Product: "eg", Exchange: "DCE", Name: "乙二醇", Multiplier: 10, PriceTick: 1},
	{Product: "pk", Exchange: "DCE", Name: "花生", Multiplier: 5, PriceTick: 2},
	{Product: "lc", Exchange: "DCE", Name: "碳酸锂", Multiplier: 1, PriceTick: 50},

	// CZCE
	{Product: "CF", Exchange: "CZCE", Name: "棉花", Multiplier: 5, PriceTick: 5},
	{Product: "CY", Exchange: "CZCE", Name: "棉纱", Multiplier: 5, PriceTick: 5},
	{Product: "SR", Exchange: "CZCE", Name: "白糖", Multiplier: 10, PriceTick: 1},
	{Product: "TA", Exchange: "CZCE", Name: "PTA", Multiplier: 5, PriceTick: 2},
	{Product: "MA", Exchange: "CZCE", Name: "甲醇", Multiplier: 10, PriceTick: 1},
	{Product: "FG", Exchange: "CZCE", Name: "玻璃", Multiplier: 20, PriceTick: 1},
	{Product: "RS", Exchange: "CZCE", Name: "菜籽", Multiplier: 10, PriceTick: 1},
	{Product: "RM", Exchange: "CZCE", Name: "菜粕", Multiplier: 10, PriceTick: 1},
	{Product: "OI", Exchange: "CZCE", Name: "菜油", Multiplier: 10, PriceTick: 2},
	{Product: "WH", Exchange: "CZCE", Name: "强麦", Multiplier: 20, PriceTick: 1},
	{Product: "PM", Exchange: "CZCE", Name: "普麦", Multiplier: 50, PriceTick: 1},
	{Product: "RI", Exchange: "CZCE", Name: "早籼稻", Multiplier: 20, PriceTick: 1},
	{Product: "LR", Exchange: "CZCE", Name: "晚籼稻", Multiplier: 20, PriceTick: 1},
	{Product: "JR", Exchange: "CZCE", Name: "粳稻", Multiplier: 20, PriceTick: 1},
	{Product: "ZC", Exchange: "CZCE", Name: "动力煤", Multiplier: 100, PriceTick: 0.2},
	{Product: "SF", Exchange: "CZCE", Name: "硅铁", Multiplier: 5, PriceTick: 2},
	{Product: "SM", Exchange: "CZCE", Name: "锰硅", Multiplier: 5, PriceTick: 2},
	{Product: "UR", Exchange: "CZCE", Name: "尿素", Multiplier: 20, PriceTick: 1},
	{Product: "SA", Exchange: "CZCE", Name: "纯碱", Multiplier: 20, PriceTick: 1},
	{Product: "PF", Exchange: "CZCE", Name: "短纤", Multiplier: 5, PriceTick: 2},
	{Product: "PK", Exchange: "CZCE", Name: "花生", Multiplier: 5, PriceTick: 2},
	{Product: "PX", Exchange: "CZCE", Name: "对二甲苯", Multiplier: 5, PriceTick: 2},
	{Product: "BR", Exchange: "CZCE", Name: "烧碱", Multiplier: 30, PriceTick: 1},

	// CFFEX
	{Product: "IF", Exchange: "CFFEX", Name: "沪深300", Multiplier: 300, PriceTick: 0.2},
	{Product: "IC", Exchange: "CFFEX", Name: "中证500", Multiplier: 200, PriceTick: 0.2},
	{Product: "IH", Exchange: "CFFEX", Name: "上证50", Multiplier: 300, PriceTick: 0.2},
	{Product: "IM", Exchange: "CFFEX", Name: "中证1000", Multiplier: 200, PriceTick: 0.2},
	{Product: "T", Exchange: "CFFEX", Name: "10年期国债", Multiplier: 10000, PriceTick: 0.005},
	{Product: "TF", Exchange: "CFFEX", Name: "5年期国债", Multiplier: 10000, PriceTick: 0.005},
	{Product: "TS", Exchange: "CFFEX", Name: "2年期国债", Multiplier: 20000, PriceTick: 0.005},
	{Product: "TL", Exchange: "CFFEX", Name: "30年期国债", Multiplier: 10000, PriceTick: 0.01},

	// INE
	{Product: "sc", Exchange: "INE", Name: "原油", Multiplier: 1000, PriceTick: 0.1},
	{Product: "nr", Exchange: "INE", Name: "20号胶", Multiplier: 10, PriceTick: 5},
	{Product: "lu", Exchange: "INE", Name: "低硫燃料油", Multiplier: 10, PriceTick: 1},
	{Product: "bc", Exchange: "INE", Name: "国际铜", Multiplier: 5, PriceTick: 10},
	{Product: "ec", Exchange: "INE", Name: "合成橡胶", Multiplier: 5, PriceTick: 5},
	{Product: "ao", Exchange: "INE", Name: "氧化铝", Multiplier: 20, PriceTick: 1},
	{Product: "ie", Exchange: "INE", Name: "集运指数(欧线)", Multiplier: 50, PriceTick: 0.1},
}
