// labels.go: COCO class-id mapping onto the product category list
package detection

// BuiltinTypes is the fixed set of object categories the base detector
// supports counting, in the order presented to callers.
var BuiltinTypes = []string{
	"car", "cat", "tree", "dog", "building", "person", "sky", "ground", "hardware", "tank",
}

// IsBuiltinType reports whether the given (already lowercased) category is a
// member of the built-in set.
func IsBuiltinType(category string) bool {
	for _, t := range BuiltinTypes {
		if t == category {
			return true
		}
	}
	return false
}

// LabelOther is returned for class ids outside the mapping.
const LabelOther = "other"

// cocoLabels maps COCO class ids onto product labels. The detector's classes
// are coarser than the product's category list in places, and several vehicle
// classes collapse onto "car" on purpose.
var cocoLabels = map[int]string{
	0:  "person",
	2:  "car",
	3:  "car", // motorcycle
	5:  "car", // bus
	7:  "car", // truck
	15: "cat",
	16: "dog",
	17: "horse",
	18: "sheep",
	19: "cow",
	20: "elephant",
	21: "bear",
	22: "zebra",
	23: "giraffe",
	24: "backpack",
	25: "umbrella",
	26: "handbag",
	27: "tie",
	28: "suitcase",
	29: "frisbee",
	30: "skis",
	31: "snowboard",
	32: "sports ball",
	33: "kite",
	34: "baseball bat",
	35: "baseball glove",
	36: "skateboard",
	37: "surfboard",
	38: "tennis racket",
	39: "bottle",
	40: "wine glass",
	41: "cup",
	42: "fork",
	43: "knife",
	44: "spoon",
	45: "bowl",
	46: "banana",
	47: "apple",
	48: "sandwich",
	49: "orange",
	50: "broccoli",
	51: "carrot",
	52: "hot dog",
	53: "pizza",
	54: "donut",
	55: "cake",
	56: "chair",
	57: "couch",
	58: "potted plant",
	59: "bed",
	60: "dining table",
	61: "toilet",
	62: "tv",
	63: "laptop",
	64: "mouse",
	65: "remote",
	66: "keyboard",
	67: "cell phone",
	68: "microwave",
	69: "oven",
	70: "toaster",
	71: "sink",
	72: "refrigerator",
	73: "book",
	74: "clock",
	75: "vase",
	76: "scissors",
	77: "teddy bear",
	78: "hair drier",
	79: "toothbrush",
}

// LabelForClass maps a detector class id to a product label.
func LabelForClass(classID int) string {
	if label, ok := cocoLabels[classID]; ok {
		return label
	}
	return LabelOther
}
