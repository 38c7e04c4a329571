package domain

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Metadata keys embedded at session creation and echoed back on completion.
// Every value arrives as a string, including numbers and the JSON-encoded
// product list.
const (
	MetaTypeOfBuy       = "typeOfBuy"
	MetaBuyerID         = "buyerId"
	MetaVendorID        = "vendedorId"
	MetaProductID       = "productId"
	MetaKitID           = "kitId"
	MetaProductIDs      = "productIds"
	MetaVendorAccountID = "vendedorConnectedAccountId"
	MetaApplicationFee  = "applicationFee"
	MetaAddressID       = "userAddressId"
	MetaPhone           = "userPhoneNumber"
	MetaUserName        = "userName"
	MetaDays            = "days"
)

// DecodePurchase validates session metadata once, at the router boundary, and
// returns the typed payload for the purchase it describes. A missing
// typeOfBuy or any missing required field is ErrMalformedEvent; a typeOfBuy
// value outside the closed set is ErrUnknownPurchaseType.
func DecodePurchase(metadata map[string]string) (Purchase, error) {
	typeOfBuy := strings.TrimSpace(metadata[MetaTypeOfBuy])
	if typeOfBuy == "" {
		return nil, ErrMalformedEvent
	}

	switch typeOfBuy {
	case PurchaseTypeProduct:
		return decodeProductPurchase(metadata)
	case PurchaseTypeKit:
		return decodeKitPurchase(metadata)
	case PurchaseTypePromotion:
		return decodePromotionPurchase(metadata)
	default:
		return nil, ErrUnknownPurchaseType
	}
}

func decodeProductPurchase(metadata map[string]string) (Purchase, error) {
	common, err := decodeCommonFields(metadata)
	if err != nil {
		return nil, err
	}
	productID, err := metadataID(metadata, MetaProductID)
	if err != nil {
		return nil, err
	}

	return &ProductPurchase{
		BuyerID:         common.buyerID,
		VendorID:        common.vendorID,
		ProductID:       productID,
		VendorAccountID: common.vendorAccountID,
		FeeAmount:       common.feeAmount,
		AddressID:       common.addressID,
		Phone:           common.phone,
		BuyerName:       common.buyerName,
	}, nil
}

func decodeKitPurchase(metadata map[string]string) (Purchase, error) {
	common, err := decodeCommonFields(metadata)
	if err != nil {
		return nil, err
	}
	kitID, err := metadataID(metadata, MetaKitID)
	if err != nil {
		return nil, err
	}

	raw := strings.TrimSpace(metadata[MetaProductIDs])
	if raw == "" {
		return nil, ErrMalformedEvent
	}
	var encoded []string
	if err := json.Unmarshal([]byte(raw), &encoded); err != nil {
		return nil, ErrMalformedEvent
	}
	if len(encoded) == 0 {
		return nil, ErrMalformedEvent
	}
	productIDs := make([]snowflake.ID, 0, len(encoded))
	for _, item := range encoded {
		id, err := snowflake.ParseString(strings.TrimSpace(item))
		if err != nil {
			return nil, ErrMalformedEvent
		}
		productIDs = append(productIDs, id)
	}

	return &KitPurchase{
		BuyerID:         common.buyerID,
		VendorID:        common.vendorID,
		KitID:           kitID,
		ProductIDs:      productIDs,
		VendorAccountID: common.vendorAccountID,
		FeeAmount:       common.feeAmount,
		AddressID:       common.addressID,
		Phone:           common.phone,
		BuyerName:       common.buyerName,
	}, nil
}

func decodePromotionPurchase(metadata map[string]string) (Purchase, error) {
	productID, err := metadataID(metadata, MetaProductID)
	if err != nil {
		return nil, err
	}
	days, err := strconv.Atoi(strings.TrimSpace(metadata[MetaDays]))
	if err != nil || days <= 0 {
		return nil, ErrMalformedEvent
	}

	return &PromotionPurchase{
		ProductID: productID,
		Days:      days,
	}, nil
}

type commonFields struct {
	buyerID         snowflake.ID
	vendorID        snowflake.ID
	vendorAccountID string
	feeAmount       int64
	addressID       snowflake.ID
	phone           string
	buyerName       string
}

func decodeCommonFields(metadata map[string]string) (commonFields, error) {
	buyerID, err := metadataID(metadata, MetaBuyerID)
	if err != nil {
		return commonFields{}, err
	}
	vendorID, err := metadataID(metadata, MetaVendorID)
	if err != nil {
		return commonFields{}, err
	}
	addressID, err := metadataID(metadata, MetaAddressID)
	if err != nil {
		return commonFields{}, err
	}

	vendorAccountID := strings.TrimSpace(metadata[MetaVendorAccountID])
	if vendorAccountID == "" {
		return commonFields{}, ErrMalformedEvent
	}
	fee, err := strconv.ParseInt(strings.TrimSpace(metadata[MetaApplicationFee]), 10, 64)
	if err != nil || fee < 0 {
		return commonFields{}, ErrMalformedEvent
	}
	phone := strings.TrimSpace(metadata[MetaPhone])
	if phone == "" {
		return commonFields{}, ErrMalformedEvent
	}
	buyerName := strings.TrimSpace(metadata[MetaUserName])
	if buyerName == "" {
		return commonFields{}, ErrMalformedEvent
	}

	return commonFields{
		buyerID:         buyerID,
		vendorID:        vendorID,
		vendorAccountID: vendorAccountID,
		feeAmount:       fee,
		addressID:       addressID,
		phone:           phone,
		buyerName:       buyerName,
	}, nil
}

func metadataID(metadata map[string]string, key string) (snowflake.ID, error) {
	raw := strings.TrimSpace(metadata[key])
	if raw == "" {
		return 0, ErrMalformedEvent
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, ErrMalformedEvent
	}
	return id, nil
}
