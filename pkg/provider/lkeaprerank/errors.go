package lkeaprerank

import (
	"errors"
	"fmt"

	tcerrors "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"

	"github.com/lkeap-plugin/lkeap/pkg/model"
)

// mapVendorError collapses any SDK or transport failure into the single
// invocation error kind. The vendor code and request id are kept in the
// message for support cases.
func mapVendorError(err error) *model.Error {
	var sdkErr *tcerrors.TencentCloudSDKError
	if errors.As(err, &sdkErr) {
		msg := fmt.Sprintf("[%s] %s", sdkErr.GetCode(), sdkErr.GetMessage())
		if id := sdkErr.GetRequestId(); id != "" {
			msg += " (request id: " + id + ")"
		}
		return model.NewInvokeError(msg, err)
	}
	return model.NewInvokeError(err.Error(), err)
}
