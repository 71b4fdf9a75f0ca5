package geography_test

import (
	"fmt"

	"github.com/sells-group/censusdis/internal/geography"
)

func ExampleSnake() {
	fmt.Println(geography.Snake("block group"))
	fmt.Println(geography.Snake("school district (unified)"))
	fmt.Println(geography.ColumnName("block group"))
	// Output:
	// block_group
	// school_district_unified
	// BLOCK_GROUP
}
