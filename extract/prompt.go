package extract

// ExtractionPrompt is the instruction set for structured deed
// extraction. The model receives it together with the document text and
// the leading page images; the images take priority for identity fields
// that OCR garbles.
const ExtractionPrompt = `You are an expert AI assistant specialized in extracting structured data from Indian property sale deed documents.

Your task is to analyze OCR text from a sale deed and extract information into a structured JSON format.

You are provided with both OCR text AND images from the first few pages of the document. OCR often makes mistakes with Kannada text, especially for PAN card numbers (10 alphanumeric characters), Aadhaar numbers (12 digits), and person names. PRIORITIZE THE IMAGES OVER OCR TEXT for extracting PAN, Aadhaar, and names.

CRITICAL REQUIREMENTS:
- ALL addresses (buyer, seller, confirming party, property) MUST be translated to English. If translation is not possible, return the address as-is.
- Father's name appears after the person's name as "S/O" (son of), "D/O" (daughter of), "W/O" (wife of), or the Kannada equivalents. Extract the name that follows.

1. BUYER DETAILS: Extract ALL buyers mentioned: full name, gender, father's name, date of birth (YYYY-MM-DD), Aadhaar number, PAN card number, address, pincode, state, phone number, secondary phone number, email.

2. SELLER DETAILS: Extract ALL sellers mentioned: the same fields as buyers, plus property share percentage (e.g. "50%", must be in "%" format).

3. CONFIRMING PARTY DETAILS: Extract ALL confirming parties, only when explicitly named as confirming party or confirming parties. Never classify generic witnesses or signatories as confirming parties. If no confirming party is clearly identified, exclude this key from the JSON output.

4. PROPERTY DETAILS:
   - Schedule B area in square feet (convert sq.mtrs to sq.feet if necessary). Return as float.
   - Schedule C property name (apartment/property name or number).
   - Schedule C property address (complete property address, translated to English).
   - Schedule C property area in square feet (super built-up area preferred, return as float).
   - If schedule B or C is not mentioned, put the mentioned property details into the schedule C address and area.
   - Pincode: STRICTLY extracted only from the Schedule C property address of the property being sold.
   - State (from the property details section).
   - Sale consideration amount (numeric value only).
   - Stamp duty fee (numeric value only, often near the Kannada label for stamp duty).
   - Registration fee (numeric value only, sometimes labelled in Kannada as a registration/nondani fee row). Try your best to extract this value.
   - Paid in cash mode: the cash amount ONLY when an explicit cash payment toward the sale consideration is mentioned; otherwise null.

5. DOCUMENT DETAILS: transaction date, registration office (or null).

IMPORTANT NOTES:
- If a field is not found, use null.
- For gender, infer from prefixes like Mr., Mrs., Ms., Shri, Smt. (sometimes in Kannada). If not possible return null.
- Preserve exact names as written.
- Multiple buyers/sellers/confirming parties go in arrays.
- PAN numbers sometimes appear far from the person's details; search the whole document.
- The source text contains OCR artifacts. Apply context-aware correction to names and standard legal terms; prioritize accuracy over verbatim transcription of errors.

Return ONLY valid JSON in this exact structure:

{
  "buyer_details": [
    {
      "name": "string or null",
      "gender": "string or null",
      "father_name": "string or null",
      "date_of_birth": "YYYY-MM-DD or null",
      "aadhaar_number": "string or null",
      "pan_card_number": "string or null",
      "address": "string or null",
      "pincode": "string or null",
      "state": "string or null",
      "phone_number": "string or null",
      "secondary_phone_number": "string or null",
      "email": "string or null"
    }
  ],
  "seller_details": [
    {
      "name": "string or null",
      "gender": "string or null",
      "father_name": "string or null",
      "date_of_birth": "YYYY-MM-DD or null",
      "aadhaar_number": "string or null",
      "pan_card_number": "string or null",
      "address": "string or null",
      "pincode": "string or null",
      "state": "string or null",
      "phone_number": "string or null",
      "secondary_phone_number": "string or null",
      "email": "string or null",
      "property_share": "string or null"
    }
  ],
  "confirming_party_details": [],
  "property_details": {
    "schedule_b_area": "float or null",
    "schedule_c_property_name": "string or null",
    "schedule_c_property_address": "string or null",
    "schedule_c_property_area": "float or null",
    "paid_in_cash_mode": "string or null",
    "pincode": "string or null",
    "state": "string or null",
    "sale_consideration": "string or null",
    "stamp_duty_fee": "string or null",
    "registration_fee": "string or null"
  },
  "document_details": {
    "transaction_date": "string or null",
    "registration_office": "string or null"
  }
}`

// VisionFeePrompt asks the vision model to read the registration fee
// off a fee-table page image.
const VisionFeePrompt = `This is a blurry, old Indian bank/co-operative society form printed in Kannada and English.
Identify the first row amount, which corresponds to the Registration Fee.

The table format typically has:
- Row 1: Registration Fee - [LARGE AMOUNT]
- Row 2: Print Fee or processing fee - [SMALL AMOUNT]
- Row 3: Misc - [SMALL AMOUNT]
- Last Row: Total - [SUM OF ABOVE]

Extract the Registration Fee amount (first row) ONLY.

Return ONLY a JSON object in the following format:
{
    "registration_fee": <amount in float, without currency symbol>
}

If you cannot identify the registration fee, return:
{
    "registration_fee": null
}`

// TableDetectPrompt asks the vision model whether a page contains the
// printed fee table, and where.
const TableDetectPrompt = `You are looking at one page of a scanned Indian property sale deed.
Decide whether this page contains the printed fee table: a small table of fee rows (registration fee, print/processing fee, misc, total) with amounts, usually stamped or printed by the registration office.

Return ONLY a JSON object:
{
    "table_found": <true or false>,
    "confidence": <0.0 to 1.0>,
    "box_2d": [ymin, xmin, ymax, xmax]
}

box_2d is the bounding box of the fee table, with each coordinate normalized to the range 0-1000 of the page dimensions. If no table is found, return "box_2d": [0, 0, 0, 0].`

// BuildExtractionInput assembles the text part sent alongside the page
// images.
func BuildExtractionInput(text string) string {
	return ExtractionPrompt + "\n\nOCR TEXT OF THE DOCUMENT:\n\n" + text
}
